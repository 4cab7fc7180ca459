// Package submit executes origin-chain transactions for new transfers:
// deposits on Sepolia, burns on Goliath, and ERC-20 approvals. It owns
// the retry policy and the provider readiness warmup shared by all
// three flows.
package submit

import (
	"context"
	"errors"
	"strings"
)

// Class buckets a submission error for the retry policy
type Class string

const (
	// ClassRejected is a wallet-level decline. Never retried.
	ClassRejected Class = "rejected"
	// ClassTransient covers network, timeout, nonce, and provider
	// hiccups worth another attempt.
	ClassTransient Class = "transient"
	// ClassPermanent is everything else. Surfaced immediately.
	ClassPermanent Class = "permanent"
)

// ErrRejected marks a transaction declined at the wallet
var ErrRejected = errors.New("transaction rejected by wallet")

// rejection markers seen across wallet providers; 4001 is the EIP-1193
// user-rejected-request code
var rejectedMarkers = []string{
	"action_rejected",
	"user rejected",
	"user denied",
	"code 4001",
}

var transientMarkers = []string{
	"nonce",
	"timeout",
	"timed out",
	"network",
	"connection",
	"provider",
	"unexpected",
}

// Classify buckets an error by inspecting its chain and message
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}
	if errors.Is(err, ErrRejected) {
		return ClassRejected
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rejectedMarkers {
		if strings.Contains(msg, marker) {
			return ClassRejected
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return ClassTransient
		}
	}

	return ClassPermanent
}
