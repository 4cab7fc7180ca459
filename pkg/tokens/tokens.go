// Package tokens holds the closed registry of bridgeable assets and the
// chain metadata needed to move them between Sepolia and Goliath.
package tokens

import "fmt"

// Network identifies one side of the bridge
type Network string

const (
	NetworkSepolia Network = "SEPOLIA"
	NetworkGoliath Network = "GOLIATH"
)

// Opposite returns the other side of the bridge
func (n Network) Opposite() Network {
	if n == NetworkSepolia {
		return NetworkGoliath
	}
	return NetworkSepolia
}

// Symbol identifies a bridgeable asset.
// v1 supports USDC and ETH; XCN and BTC are planned.
type Symbol string

const (
	SymbolUSDC Symbol = "USDC"
	SymbolETH  Symbol = "ETH"
)

// ChainTokenConfig describes an asset as deployed on one chain
type ChainTokenConfig struct {
	Address  string // empty = native asset
	Decimals int32
	IsNative bool
}

// Config describes a bridgeable asset on both chains
type Config struct {
	Symbol  Symbol
	Name    string
	Sepolia ChainTokenConfig
	Goliath ChainTokenConfig
}

var registry = map[Symbol]Config{
	SymbolUSDC: {
		Symbol: SymbolUSDC,
		Name:   "USD Coin",
		Sepolia: ChainTokenConfig{
			// Circle's official Sepolia USDC
			Address:  "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			Decimals: 6,
		},
		Goliath: ChainTokenConfig{
			Address:  "0xEf2B9f754405f52c80B5A67656f14672a00d23b4",
			Decimals: 6,
		},
	},
	SymbolETH: {
		Symbol: SymbolETH,
		Name:   "Ethereum",
		Sepolia: ChainTokenConfig{
			// ETH is native on Sepolia
			Decimals: 18,
			IsNative: true,
		},
		Goliath: ChainTokenConfig{
			// ETH is an ERC-20 on Goliath
			Address:  "0x9d318b851a6AF920D467bC5dC9882b5DFD36D65e",
			Decimals: 18,
		},
	},
}

// DefaultSymbol is the asset preselected for new transfers
const DefaultSymbol = SymbolETH

// List returns the symbols enabled for bridging in v1
func List() []Symbol {
	return []Symbol{SymbolETH}
}

// Lookup returns the full config for a symbol
func Lookup(symbol Symbol) (Config, error) {
	cfg, ok := registry[symbol]
	if !ok {
		return Config{}, fmt.Errorf("unknown bridge token: %s", symbol)
	}
	return cfg, nil
}

// ForChain returns the chain-specific config for a symbol
func ForChain(symbol Symbol, network Network) (ChainTokenConfig, error) {
	cfg, err := Lookup(symbol)
	if err != nil {
		return ChainTokenConfig{}, err
	}
	if network == NetworkSepolia {
		return cfg.Sepolia, nil
	}
	return cfg.Goliath, nil
}

// RequiresApproval reports whether the asset needs an ERC-20 allowance
// on the given chain. Native assets never do.
func RequiresApproval(symbol Symbol, network Network) bool {
	cfg, err := ForChain(symbol, network)
	if err != nil {
		return false
	}
	return !cfg.IsNative
}

// GasBuffer returns the amount reserved for gas when spending the full
// balance of a native asset, as a human-readable string.
func GasBuffer(symbol Symbol, network Network) string {
	cfg, err := ForChain(symbol, network)
	if err != nil || !cfg.IsNative {
		return "0"
	}
	return "0.01"
}
