package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

func readyInput() Input {
	return Input{
		Account:           "0x1111111111111111111111111111111111111111",
		ChainID:           11155111,
		OriginNetwork:     tokens.NetworkSepolia,
		OriginChainID:     11155111,
		Token:             tokens.SymbolETH,
		Amount:            "0.01",
		OriginBalance:     "1.0",
		MinAmount:         "0.000001",
		MaxEthFromGoliath: "0.05",
		BridgeEnabled:     true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		want   State
		valid  bool
	}{
		{name: "ready", mutate: func(in *Input) {}, want: StateReady, valid: true},
		{name: "not connected", mutate: func(in *Input) { in.Account = "" }, want: StateNotConnected},
		{name: "bridge disabled", mutate: func(in *Input) { in.BridgeEnabled = false }, want: StateBridgeUnavailable},
		{name: "wrong network", mutate: func(in *Input) { in.ChainID = 1 }, want: StateWrongNetwork},
		{name: "empty amount", mutate: func(in *Input) { in.Amount = "" }, want: StateEmptyAmount},
		{name: "whitespace amount", mutate: func(in *Input) { in.Amount = "   " }, want: StateEmptyAmount},
		{name: "garbage amount", mutate: func(in *Input) { in.Amount = "12abc" }, want: StateInvalidAmount},
		{name: "zero amount", mutate: func(in *Input) { in.Amount = "0" }, want: StateEmptyAmount},
		{name: "below minimum", mutate: func(in *Input) { in.Amount = "0.0000001" }, want: StateAmountTooSmall},
		{
			name: "over goliath eth cap",
			mutate: func(in *Input) {
				in.OriginNetwork = tokens.NetworkGoliath
				in.OriginChainID = 8901
				in.ChainID = 8901
				in.Amount = "0.06"
			},
			want: StateAmountTooLarge,
		},
		{
			name: "at goliath eth cap",
			mutate: func(in *Input) {
				in.OriginNetwork = tokens.NetworkGoliath
				in.OriginChainID = 8901
				in.ChainID = 8901
				in.Amount = "0.05"
			},
			want:  StateReady,
			valid: true,
		},
		{
			name: "sepolia origin has no eth cap",
			mutate: func(in *Input) {
				in.Amount = "0.5"
			},
			want:  StateReady,
			valid: true,
		},
		{name: "insufficient balance", mutate: func(in *Input) { in.Amount = "2.0" }, want: StateInsufficientBalance},
		{
			name:   "unknown balance skips the check",
			mutate: func(in *Input) { in.Amount = "2.0"; in.OriginBalance = "" },
			want:   StateReady,
			valid:  true,
		},
		{name: "needs approval", mutate: func(in *Input) { in.NeedsApproval = true }, want: StateNeedsApproval, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyInput()
			tt.mutate(&in)

			got := Validate(in)
			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, tt.valid, got.Valid)
			assert.NotEmpty(t, got.Action)
		})
	}
}

func TestValidateOrderOfChecks(t *testing.T) {
	// connection state beats everything else
	in := readyInput()
	in.Account = ""
	in.BridgeEnabled = false
	in.Amount = "garbage"
	assert.Equal(t, StateNotConnected, Validate(in).State)

	// availability beats network mismatch
	in = readyInput()
	in.BridgeEnabled = false
	in.ChainID = 1
	assert.Equal(t, StateBridgeUnavailable, Validate(in).State)
}

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"))
	assert.False(t, IsValidAddress("0x123"))
	assert.False(t, IsValidAddress("1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"))
	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0xZZ7D4B196Cb0C7B01d743Fbc6116a902379C7238"))
}
