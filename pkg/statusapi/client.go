// Package statusapi talks to the bridge status authority, the backend
// service that watches both chains and reports where each transfer is
// in its lifecycle.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// StatusResponse is the authority's view of one operation
type StatusResponse struct {
	OperationID             string           `json:"operationId"`
	Direction               bridge.Direction `json:"direction"`
	Status                  bridge.Status    `json:"status"`
	Token                   tokens.Symbol    `json:"token"`
	Amount                  string           `json:"amount"`
	AmountFormatted         string           `json:"amountFormatted"`
	Sender                  string           `json:"sender"`
	Recipient               string           `json:"recipient"`
	OriginChainID           int64            `json:"originChainId"`
	DestinationChainID      int64            `json:"destinationChainId"`
	OriginTxHash            string           `json:"originTxHash"`
	DestinationTxHash       string           `json:"destinationTxHash"`
	DepositID               string           `json:"depositId"`
	WithdrawID              string           `json:"withdrawId"`
	OriginConfirmations     int              `json:"originConfirmations"`
	RequiredConfirmations   int              `json:"requiredConfirmations"`
	Timestamps              Timestamps       `json:"timestamps"`
	EstimatedCompletionTime string           `json:"estimatedCompletionTime"`
	Error                   string           `json:"error"`
	IsSameWallet            bool             `json:"isSameWallet"`
}

// Timestamps records when each lifecycle stage was reached
type Timestamps struct {
	DepositedAt            string `json:"depositedAt"`
	FinalizedAt            string `json:"finalizedAt"`
	DestinationSubmittedAt string `json:"destinationSubmittedAt"`
	CompletedAt            string `json:"completedAt"`
}

// HistoryResponse is a page of operations for one address
type HistoryResponse struct {
	Operations []StatusResponse `json:"operations"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination describes a history page
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// HealthResponse is the authority's own health report
type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Chains  map[string]Chain `json:"chains"`
	Relayer RelayerHealth    `json:"relayer"`
}

// Chain reports indexer progress on one chain
type Chain struct {
	Connected          bool  `json:"connected"`
	LastBlock          int64 `json:"lastBlock"`
	LastProcessedBlock int64 `json:"lastProcessedBlock"`
	Lag                int64 `json:"lag"`
}

// RelayerHealth reports relayer backlog
type RelayerHealth struct {
	PendingOperations int    `json:"pendingOperations"`
	LastProcessedAt   string `json:"lastProcessedAt"`
}

// APIError is a non-2xx response from the authority
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status api: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("status api: %s", e.Message)
}

// StatusQuery identifies an operation to the authority. Exactly one
// field must be set; originTxHash takes precedence, then depositId.
type StatusQuery struct {
	OriginTxHash string
	DepositID    string
	WithdrawID   string
}

// HistoryQuery filters the history listing
type HistoryQuery struct {
	Address   string
	Limit     int
	Offset    int
	Status    bridge.Status
	Direction bridge.Direction
}

// Client is an HTTP client for the status authority
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetStatus looks up one operation. A 404 means the authority does not
// know the operation yet and returns (nil, nil); callers treat that as
// "keep waiting", not as an error.
func (c *Client) GetStatus(ctx context.Context, q StatusQuery) (*StatusResponse, error) {
	params := url.Values{}
	switch {
	case q.OriginTxHash != "":
		params.Set("originTxHash", q.OriginTxHash)
	case q.DepositID != "":
		params.Set("depositId", q.DepositID)
	case q.WithdrawID != "":
		params.Set("withdrawId", q.WithdrawID)
	default:
		return nil, fmt.Errorf("status query requires an origin tx hash, deposit id, or withdraw id")
	}

	var resp StatusResponse
	err := c.get(ctx, "/status?"+params.Encode(), &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// GetHistory lists operations for an address, newest first
func (c *Client) GetHistory(ctx context.Context, q HistoryQuery) (*HistoryResponse, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	params := url.Values{}
	params.Set("address", q.Address)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Direction != "" {
		params.Set("direction", string(q.Direction))
	}

	var resp HistoryResponse
	if err := c.get(ctx, "/history?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetHealth fetches the authority's health report
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsPaused reports whether bridging should be treated as unavailable.
// An unreachable authority counts as paused.
func (c *Client) IsPaused(ctx context.Context) bool {
	health, err := c.GetHealth(ctx)
	if err != nil {
		return true
	}
	return health.Status != "healthy"
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("status api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
		var body struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil {
			if body.Message != "" {
				apiErr.Message = body.Message
			}
			apiErr.Code = body.Code
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode status api response: %w", err)
	}
	return nil
}
