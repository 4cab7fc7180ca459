// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryDataError The client sends some invalid data in the request,
	// for example, missing or incorrect content in the payload or parameters.
	CategoryDataError Category = iota + 1
	// CategoryResourceNotFound The client is attempting to access a resource that does not exist
	CategoryResourceNotFound
	// CategoryNotSupported The requested functionality is not supported
	CategoryNotSupported
	// CategoryDataConflict The client send some data that can create conflict with existing data
	CategoryDataConflict
	// CategoryLocked The requested resource is busy with a conflicting operation
	CategoryLocked
	// CategoryDependencyFailure A dependent service is throwing errors
	CategoryDependencyFailure
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

// ServiceError is the error type handlers return; the HTTP layer maps
// its category to a status code.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// GeneralError returns a general service error; the message sent to
// the user is "Internal Server Error", the wrapped error is logged.
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	if err == nil {
		err = errors.New("resource not found: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceNotFound,
		Message:  message,
		Err:      err,
	}
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	if err == nil {
		err = errors.New("bad request: " + message)
	}
	return &ServiceError{
		Category: CategoryDataError,
		Message:  message,
		Err:      err,
	}
}

// NotSupportedError returns an error with category NotSupported
func NotSupportedError(err error, message string) error {
	if err == nil {
		err = errors.New("not supported: " + message)
	}
	return &ServiceError{
		Category: CategoryNotSupported,
		Message:  message,
		Err:      err,
	}
}

// ConflictError returns an error with category CategoryDataConflict
func ConflictError(err error, message string) error {
	if err == nil {
		err = errors.New("conflict")
	}
	return &ServiceError{
		Category: CategoryDataConflict,
		Message:  message,
		Err:      err,
	}
}

// LockedError returns an error with category CategoryLocked
func LockedError(err error, message string) error {
	if err == nil {
		err = errors.New("locked")
	}
	return &ServiceError{
		Category: CategoryLocked,
		Message:  message,
		Err:      err,
	}
}

// DependencyFailureError returns an error with category CategoryDependencyFailure
func DependencyFailureError(err error, message string) error {
	if err == nil {
		err = errors.New("dependency failure")
	}
	return &ServiceError{
		Category: CategoryDependencyFailure,
		Message:  message,
		Err:      err,
	}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryNotSupported:
		return http.StatusMethodNotAllowed
	case CategoryDataConflict:
		return http.StatusConflict
	case CategoryLocked:
		return http.StatusLocked
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
