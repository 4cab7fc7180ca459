package wallet

// Minimal ABI fragments for the bridge contracts and ERC-20 tokens.
// The Sepolia bridge exposes deposit entrypoints, the Goliath bridge
// the matching burn entrypoints.

const sepoliaBridgeABI = `[
	{"type":"function","name":"depositNative","stateMutability":"payable","inputs":[{"name":"recipient","type":"address"}],"outputs":[]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]}
]`

const goliathBridgeABI = `[
	{"type":"function","name":"burnNative","stateMutability":"payable","inputs":[{"name":"recipient","type":"address"}],"outputs":[]},
	{"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"recipient","type":"address"}],"outputs":[]}
]`

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`
