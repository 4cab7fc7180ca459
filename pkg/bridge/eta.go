package bridge

import (
	"fmt"
	"time"
)

// StaticEstimate is the completion estimate shown before the status
// authority reports one.
const StaticEstimate = "3-5 minutes"

// FormatETA renders the remaining time until the estimated completion
// timestamp. Operations without an estimate get the static one, and an
// estimate in the past reads as imminent rather than negative.
func FormatETA(op Operation, now time.Time) string {
	if op.Status.Terminal() {
		return ""
	}
	if op.EstimatedCompletionTime == "" {
		return StaticEstimate
	}

	est, err := time.Parse(time.RFC3339, op.EstimatedCompletionTime)
	if err != nil {
		return StaticEstimate
	}

	remaining := est.Sub(now)
	if remaining <= 0 {
		return "any moment now"
	}
	if remaining < time.Minute {
		return "less than a minute"
	}

	minutes := int(remaining.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "about 1 minute"
	}
	return fmt.Sprintf("about %d minutes", minutes)
}

// StepDescription renders a short progress line for the current status
func StepDescription(op Operation) string {
	switch op.Status {
	case StatusPendingOriginTx:
		return "Waiting for origin transaction"
	case StatusConfirming:
		return fmt.Sprintf("Confirming (%d/%d)", op.OriginConfirmations, op.RequiredConfirmations)
	case StatusAwaitingRelay:
		return "Waiting for relay"
	case StatusProcessingDestination:
		return "Processing on destination chain"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusExpired:
		return "Expired"
	case StatusDelayed:
		return "Taking longer than expected"
	default:
		return string(op.Status)
	}
}

// IsStuck reports whether a non-terminal operation has gone without an
// update for longer than threshold.
func IsStuck(op Operation, threshold time.Duration, now time.Time) bool {
	if op.Status.Terminal() {
		return false
	}
	updated := time.UnixMilli(op.UpdatedAt)
	return now.Sub(updated) > threshold
}
