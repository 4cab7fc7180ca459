// Package bridge holds the cross-chain transfer lifecycle model: the
// operation record, the merge rules every mutation goes through, and
// the in-memory store the rest of the tracker reads from.
package bridge

import (
	"time"

	"github.com/google/uuid"

	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// Direction fixes the origin/destination chain pair of a transfer
type Direction string

const (
	DirectionSepoliaToGoliath Direction = "SEPOLIA_TO_GOLIATH"
	DirectionGoliathToSepolia Direction = "GOLIATH_TO_SEPOLIA"
)

// Origin returns the network a transfer departs from
func (d Direction) Origin() tokens.Network {
	if d == DirectionSepoliaToGoliath {
		return tokens.NetworkSepolia
	}
	return tokens.NetworkGoliath
}

// Destination returns the network a transfer arrives at
func (d Direction) Destination() tokens.Network {
	return d.Origin().Opposite()
}

// Status represents the current state of a bridge operation
type Status string

const (
	StatusPendingOriginTx       Status = "PENDING_ORIGIN_TX"
	StatusConfirming            Status = "CONFIRMING"
	StatusAwaitingRelay         Status = "AWAITING_RELAY"
	StatusProcessingDestination Status = "PROCESSING_DESTINATION"
	StatusCompleted             Status = "COMPLETED"
	StatusFailed                Status = "FAILED"
	StatusExpired               Status = "EXPIRED"
	StatusDelayed               Status = "DELAYED"
)

// Terminal reports whether no further status transition is expected
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Operation is a single user-initiated transfer attempt. Timestamps
// are milliseconds since epoch, matching the v1 snapshot layout.
type Operation struct {
	ID                      string        `json:"id"`
	Direction               Direction     `json:"direction"`
	Token                   tokens.Symbol `json:"token"`
	AmountHuman             string        `json:"amountHuman"`
	AmountAtomic            string        `json:"amountAtomic"`
	Sender                  string        `json:"sender"`
	Recipient               string        `json:"recipient"`
	OriginChainID           int64         `json:"originChainId"`
	DestinationChainID      int64         `json:"destinationChainId"`
	OriginTxHash            string        `json:"originTxHash,omitempty"`
	DestinationTxHash       string        `json:"destinationTxHash,omitempty"`
	DepositID               string        `json:"depositId,omitempty"`
	WithdrawID              string        `json:"withdrawId,omitempty"`
	Status                  Status        `json:"status"`
	CreatedAt               int64         `json:"createdAt"`
	UpdatedAt               int64         `json:"updatedAt"`
	OriginConfirmations     int           `json:"originConfirmations"`
	RequiredConfirmations   int           `json:"requiredConfirmations"`
	ErrorMessage            string        `json:"errorMessage,omitempty"`
	EstimatedCompletionTime string        `json:"estimatedCompletionTime,omitempty"`
}

// NewOperationParams carries everything needed to create an operation
// at submission time.
type NewOperationParams struct {
	Direction             Direction
	Token                 tokens.Symbol
	AmountHuman           string
	AmountAtomic          string
	Sender                string
	Recipient             string
	OriginChainID         int64
	DestinationChainID    int64
	OriginTxHash          string
	RequiredConfirmations int
}

// NewOperation creates a fresh operation in PENDING_ORIGIN_TX with a
// client-generated id and zero confirmations.
func NewOperation(p NewOperationParams, now time.Time) Operation {
	ms := now.UnixMilli()
	return Operation{
		ID:                    uuid.New().String(),
		Direction:             p.Direction,
		Token:                 p.Token,
		AmountHuman:           p.AmountHuman,
		AmountAtomic:          p.AmountAtomic,
		Sender:                p.Sender,
		Recipient:             p.Recipient,
		OriginChainID:         p.OriginChainID,
		DestinationChainID:    p.DestinationChainID,
		OriginTxHash:          p.OriginTxHash,
		Status:                StatusPendingOriginTx,
		CreatedAt:             ms,
		UpdatedAt:             ms,
		RequiredConfirmations: p.RequiredConfirmations,
	}
}
