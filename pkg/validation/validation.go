// Package validation derives whether a proposed transfer may be
// submitted. It is a pure mapping from inputs to a closed set of
// outcomes; every mutating flow checks it first.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// State is the validation outcome for a proposed transfer
type State string

const (
	StateNotConnected        State = "NOT_CONNECTED"
	StateWrongNetwork        State = "WRONG_NETWORK"
	StateEmptyAmount         State = "EMPTY_AMOUNT"
	StateInvalidAmount       State = "INVALID_AMOUNT"
	StateAmountTooSmall      State = "AMOUNT_TOO_SMALL"
	StateAmountTooLarge      State = "AMOUNT_TOO_LARGE"
	StateInsufficientBalance State = "INSUFFICIENT_BALANCE"
	StateBridgeUnavailable   State = "BRIDGE_UNAVAILABLE"
	StateNeedsApproval       State = "NEEDS_APPROVAL"
	StateReady               State = "READY"
)

// Result carries the outcome plus the recommended call to action
type Result struct {
	State        State
	Valid        bool
	Action       string
	ErrorMessage string
}

// Input is everything the derivation needs. No field is read from
// anywhere else; the function is fully deterministic.
type Input struct {
	Account           string
	ChainID           int64
	OriginNetwork     tokens.Network
	OriginChainID     int64
	Token             tokens.Symbol
	Amount            string
	OriginBalance     string // empty means unknown; skips the balance check
	MinAmount         string
	MaxEthFromGoliath string
	BridgeEnabled     bool
	NeedsApproval     bool
}

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValidAddress reports whether the input looks like a hex address
func IsValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// Validate maps the input to a single outcome. Checks run in fixed
// order; the first failure wins.
func Validate(in Input) Result {
	if in.Account == "" {
		return Result{State: StateNotConnected, Action: "connect wallet"}
	}

	if !in.BridgeEnabled {
		return Result{
			State:        StateBridgeUnavailable,
			Action:       "bridge unavailable",
			ErrorMessage: "bridging is temporarily unavailable",
		}
	}

	if in.ChainID != in.OriginChainID {
		return Result{
			State:  StateWrongNetwork,
			Action: fmt.Sprintf("switch to %s", strings.ToLower(string(in.OriginNetwork))),
		}
	}

	if strings.TrimSpace(in.Amount) == "" {
		return Result{State: StateEmptyAmount, Action: "enter an amount"}
	}

	if !tokens.IsValidAmountString(in.Amount) {
		return Result{
			State:        StateInvalidAmount,
			Action:       "invalid amount",
			ErrorMessage: "please enter a valid number",
		}
	}

	if !tokens.IsPositiveAmount(in.Amount) {
		return Result{State: StateEmptyAmount, Action: "enter an amount"}
	}

	if cmp, err := tokens.CompareAmounts(in.Amount, in.MinAmount, in.Token, in.OriginNetwork); err != nil || cmp < 0 {
		if err != nil {
			return Result{
				State:        StateInvalidAmount,
				Action:       "invalid amount",
				ErrorMessage: "please enter a valid number",
			}
		}
		return Result{
			State:        StateAmountTooSmall,
			Action:       "amount too small",
			ErrorMessage: fmt.Sprintf("minimum amount is %s %s", in.MinAmount, in.Token),
		}
	}

	// testnet abuse guard: ETH leaving Goliath is capped
	if in.OriginNetwork == tokens.NetworkGoliath && in.Token == tokens.SymbolETH && in.MaxEthFromGoliath != "" {
		if cmp, err := tokens.CompareAmounts(in.Amount, in.MaxEthFromGoliath, in.Token, in.OriginNetwork); err == nil && cmp > 0 {
			return Result{
				State:        StateAmountTooLarge,
				Action:       "amount exceeds limit",
				ErrorMessage: fmt.Sprintf("maximum amount is %s ETH", in.MaxEthFromGoliath),
			}
		}
	}

	if in.OriginBalance != "" {
		if cmp, err := tokens.CompareAmounts(in.Amount, in.OriginBalance, in.Token, in.OriginNetwork); err == nil && cmp > 0 {
			return Result{
				State:  StateInsufficientBalance,
				Action: fmt.Sprintf("insufficient %s balance", in.Token),
			}
		}
	}

	if in.NeedsApproval {
		return Result{
			State:  StateNeedsApproval,
			Valid:  true,
			Action: fmt.Sprintf("approve %s", in.Token),
		}
	}

	return Result{
		State:  StateReady,
		Valid:  true,
		Action: fmt.Sprintf("bridge %s", in.Token),
	}
}
