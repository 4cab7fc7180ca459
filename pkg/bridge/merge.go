package bridge

import "time"

// StatusUpdate carries the fields a poll or submission step may change
// on an operation. Zero values mean "not provided".
type StatusUpdate struct {
	Status                  Status
	OriginConfirmations     int
	DestinationTxHash       string
	DepositID               string
	WithdrawID              string
	ErrorMessage            string
	EstimatedCompletionTime string
}

// Merge applies an update to an operation and returns the result.
//
// Two rules hold no matter where the update came from: confirmations
// never decrease (the stored and incoming counts are max-merged), and
// once an operation is terminal only a missing destination tx hash may
// still be filled in. UpdatedAt is refreshed on every call.
func Merge(op Operation, u StatusUpdate, now time.Time) Operation {
	if op.Status.Terminal() {
		if op.DestinationTxHash == "" && u.DestinationTxHash != "" {
			op.DestinationTxHash = u.DestinationTxHash
		}
		op.UpdatedAt = now.UnixMilli()
		return op
	}

	if u.Status != "" {
		op.Status = u.Status
	}
	if u.OriginConfirmations > op.OriginConfirmations {
		op.OriginConfirmations = u.OriginConfirmations
	}
	if u.DestinationTxHash != "" {
		op.DestinationTxHash = u.DestinationTxHash
	}
	if u.DepositID != "" {
		op.DepositID = u.DepositID
	}
	if u.WithdrawID != "" {
		op.WithdrawID = u.WithdrawID
	}
	if u.ErrorMessage != "" {
		op.ErrorMessage = u.ErrorMessage
	}
	if u.EstimatedCompletionTime != "" {
		op.EstimatedCompletionTime = u.EstimatedCompletionTime
	}
	op.UpdatedAt = now.UnixMilli()

	return op
}
