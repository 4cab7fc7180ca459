// Package wallet signs and submits transactions on both bridge chains
// with a locally held key, and answers the balance and allowance reads
// the rest of the tracker needs.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/config"
	"github.com/goliathlabs/bridge-tracker/pkg/submit"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

const receiptPollInterval = 2 * time.Second

// chainClient wraps one chain's RPC connection, signer, and bridge
// contract binding.
type chainClient struct {
	cfg      config.ChainConfig
	client   *ethclient.Client
	bridge   *bind.BoundContract
	erc20ABI abi.ABI
}

// Wallet holds a signer and a client per chain
type Wallet struct {
	sepolia    *chainClient
	goliath    *chainClient
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewWallet connects to both chains and loads the signing key from the
// Sepolia chain config. One key signs on both chains.
func NewWallet(sepoliaCfg, goliathCfg config.ChainConfig, logger *zap.Logger) (*Wallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(sepoliaCfg.WalletPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	sepolia, err := newChainClient(sepoliaCfg, sepoliaBridgeABI)
	if err != nil {
		return nil, fmt.Errorf("sepolia: %w", err)
	}
	goliath, err := newChainClient(goliathCfg, goliathBridgeABI)
	if err != nil {
		sepolia.client.Close()
		return nil, fmt.Errorf("goliath: %w", err)
	}

	logger.Info("wallet connected",
		zap.String("address", address.Hex()),
		zap.Int64("sepolia_chain_id", sepoliaCfg.ChainID),
		zap.Int64("goliath_chain_id", goliathCfg.ChainID))

	return &Wallet{
		sepolia:    sepolia,
		goliath:    goliath,
		privateKey: privateKey,
		address:    address,
		logger:     logger,
	}, nil
}

func newChainClient(cfg config.ChainConfig, bridgeABIJSON string) (*chainClient, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	bridgeABI, err := abi.JSON(strings.NewReader(bridgeABIJSON))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse bridge ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	bridge := bind.NewBoundContract(common.HexToAddress(cfg.BridgeContract), bridgeABI, client, client, client)

	return &chainClient{
		cfg:      cfg,
		client:   client,
		bridge:   bridge,
		erc20ABI: tokenABI,
	}, nil
}

// Close closes both RPC connections
func (w *Wallet) Close() {
	w.sepolia.client.Close()
	w.goliath.client.Close()
}

// Address returns the signing address as a hex string
func (w *Wallet) Address() string {
	return w.address.Hex()
}

func (w *Wallet) chain(network tokens.Network) *chainClient {
	if network == tokens.NetworkSepolia {
		return w.sepolia
	}
	return w.goliath
}

// BlockNumber returns the latest block number on a chain
func (w *Wallet) BlockNumber(ctx context.Context, network tokens.Network) (uint64, error) {
	header, err := w.chain(network).client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// NativeBalance returns the account's native asset balance in wei
func (w *Wallet) NativeBalance(ctx context.Context, network tokens.Network, account string) (*big.Int, error) {
	balance, err := w.chain(network).client.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the account's balance of an asset in atomic
// units, dispatching between the native balance and an ERC-20 read.
func (w *Wallet) TokenBalance(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) (*big.Int, error) {
	tokenCfg, err := tokens.ForChain(token, network)
	if err != nil {
		return nil, err
	}
	if tokenCfg.IsNative {
		return w.NativeBalance(ctx, network, account)
	}

	c := w.chain(network)
	erc20 := bind.NewBoundContract(common.HexToAddress(tokenCfg.Address), c.erc20ABI, c.client, c.client, c.client)

	var out []any
	err = erc20.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("failed to read token balance: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// SubmitDeposit sends the Sepolia origin transaction
func (w *Wallet) SubmitDeposit(ctx context.Context, token tokens.Symbol, amount *big.Int, recipient string) (string, error) {
	tokenCfg, err := tokens.ForChain(token, tokens.NetworkSepolia)
	if err != nil {
		return "", err
	}

	auth, err := w.transactor(ctx, w.sepolia)
	if err != nil {
		return "", err
	}

	var tx *types.Transaction
	if tokenCfg.IsNative {
		auth.Value = amount
		tx, err = w.sepolia.bridge.Transact(auth, "depositNative", common.HexToAddress(recipient))
	} else {
		tx, err = w.sepolia.bridge.Transact(auth, "deposit",
			common.HexToAddress(tokenCfg.Address), amount, common.HexToAddress(recipient))
	}
	if err != nil {
		return "", fmt.Errorf("failed to submit deposit: %w", err)
	}

	w.logger.Info("deposit submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("token", string(token)),
		zap.String("amount", amount.String()))
	return tx.Hash().Hex(), nil
}

// SubmitBurn sends the Goliath origin transaction
func (w *Wallet) SubmitBurn(ctx context.Context, token tokens.Symbol, amount *big.Int, recipient string) (string, error) {
	tokenCfg, err := tokens.ForChain(token, tokens.NetworkGoliath)
	if err != nil {
		return "", err
	}

	auth, err := w.transactor(ctx, w.goliath)
	if err != nil {
		return "", err
	}

	var tx *types.Transaction
	if tokenCfg.IsNative {
		auth.Value = amount
		tx, err = w.goliath.bridge.Transact(auth, "burnNative", common.HexToAddress(recipient))
	} else {
		tx, err = w.goliath.bridge.Transact(auth, "burn",
			common.HexToAddress(tokenCfg.Address), amount, common.HexToAddress(recipient))
	}
	if err != nil {
		return "", fmt.Errorf("failed to submit burn: %w", err)
	}

	w.logger.Info("burn submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("token", string(token)),
		zap.String("amount", amount.String()))
	return tx.Hash().Hex(), nil
}

// SubmitApproval grants the bridge contract an ERC-20 allowance
func (w *Wallet) SubmitApproval(ctx context.Context, network tokens.Network, token tokens.Symbol, amount *big.Int) (string, error) {
	tokenCfg, err := tokens.ForChain(token, network)
	if err != nil {
		return "", err
	}
	if tokenCfg.IsNative {
		return "", errors.New("native asset does not need approval")
	}

	c := w.chain(network)
	auth, err := w.transactor(ctx, c)
	if err != nil {
		return "", err
	}

	erc20 := bind.NewBoundContract(common.HexToAddress(tokenCfg.Address), c.erc20ABI, c.client, c.client, c.client)
	tx, err := erc20.Transact(auth, "approve", common.HexToAddress(c.cfg.BridgeContract), amount)
	if err != nil {
		return "", fmt.Errorf("failed to submit approval: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// Allowance reads the bridge contract's current ERC-20 allowance
func (w *Wallet) Allowance(ctx context.Context, network tokens.Network, token tokens.Symbol, owner string) (*big.Int, error) {
	tokenCfg, err := tokens.ForChain(token, network)
	if err != nil {
		return nil, err
	}
	if tokenCfg.IsNative {
		return nil, errors.New("native asset does not have an allowance")
	}

	c := w.chain(network)
	erc20 := bind.NewBoundContract(common.HexToAddress(tokenCfg.Address), c.erc20ABI, c.client, c.client, c.client)

	var out []any
	err = erc20.Call(&bind.CallOpts{Context: ctx}, &out, "allowance",
		common.HexToAddress(owner), common.HexToAddress(c.cfg.BridgeContract))
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// WaitMined polls for the transaction receipt until it lands or ctx
// expires.
func (w *Wallet) WaitMined(ctx context.Context, network tokens.Network, txHash string) (*submit.Receipt, error) {
	c := w.chain(network)
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return &submit.Receipt{
				TxHash:  txHash,
				Status:  receipt.Status,
				GasUsed: receipt.GasUsed,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Wallet) transactor(ctx context.Context, c *chainClient) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(w.privateKey, big.NewInt(c.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Context = ctx
	auth.Nonce = big.NewInt(int64(nonce))
	auth.GasLimit = c.cfg.GasLimit
	return auth, nil
}
