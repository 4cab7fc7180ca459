// Package balances keeps a best-effort live view of the wallet's
// balances on both chains. Stale-but-present beats absent: a failed
// refresh never blanks a previously known balance.
package balances

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// BalanceReader is the slice of the wallet the tracker polls
type BalanceReader interface {
	TokenBalance(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) (*big.Int, error)
}

// Balance is one asset's balance on one chain. Known distinguishes
// "fetched and zero" from "never fetched", so an initial load shows
// unknown rather than a flash of zero.
type Balance struct {
	Atomic    *big.Int
	Known     bool
	FetchedAt time.Time
}

// Formatted renders the balance for display; unknown renders empty
func (b Balance) Formatted(token tokens.Symbol, network tokens.Network, displayDecimals int32) string {
	if !b.Known {
		return ""
	}
	return tokens.FormatAmount(b.Atomic, token, network, displayDecimals)
}

type key struct {
	network tokens.Network
	token   tokens.Symbol
}

// Config tunes the polling cadence
type Config struct {
	NormalInterval     time.Duration
	AggressiveInterval time.Duration
	AggressiveWindow   time.Duration
}

// Tracker polls balances for one account across both chains
type Tracker struct {
	reader BalanceReader
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.RWMutex
	account         string
	balances        map[key]Balance
	aggressiveUntil time.Time
	kick            chan struct{}
}

// NewTracker creates a tracker with no account set
func NewTracker(reader BalanceReader, cfg Config, logger *zap.Logger) *Tracker {
	return &Tracker{
		reader:   reader,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		balances: make(map[key]Balance),
		kick:     make(chan struct{}, 1),
	}
}

// SetAccount switches the tracked account. Balances reset to unknown
// only when the account actually changes to a different non-empty one;
// a reconnect of the same account keeps what is already known.
func (t *Tracker) SetAccount(account string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if account == "" || account == t.account {
		if account != "" {
			t.account = account
		}
		return
	}

	t.account = account
	t.balances = make(map[key]Balance)
	t.logger.Debug("tracked account changed, balances reset", zap.String("account", account))
}

// Get returns the current view of one balance
func (t *Tracker) Get(network tokens.Network, token tokens.Symbol) Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.balances[key{network: network, token: token}]
	if !ok {
		return Balance{Atomic: big.NewInt(0)}
	}
	return b
}

// BoostAfterSubmission switches to the aggressive cadence for the
// configured window, so a just-submitted transfer shows up quickly.
func (t *Tracker) BoostAfterSubmission() {
	t.mu.Lock()
	t.aggressiveUntil = t.now().Add(t.cfg.AggressiveWindow)
	t.mu.Unlock()

	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Tracker) interval() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.now().Before(t.aggressiveUntil) {
		return t.cfg.AggressiveInterval
	}
	return t.cfg.NormalInterval
}

// Run polls until ctx is cancelled
func (t *Tracker) Run(ctx context.Context) {
	for {
		t.RefreshAll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.kick:
		case <-time.After(t.interval()):
		}
	}
}

// RefreshAll fetches every tracked token on both chains once
func (t *Tracker) RefreshAll(ctx context.Context) {
	t.mu.RLock()
	account := t.account
	t.mu.RUnlock()

	if account == "" {
		return
	}

	for _, token := range tokens.List() {
		for _, network := range []tokens.Network{tokens.NetworkSepolia, tokens.NetworkGoliath} {
			t.refresh(ctx, network, token, account)
		}
	}
}

func (t *Tracker) refresh(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) {
	atomic, err := t.reader.TokenBalance(ctx, network, token, account)
	if err != nil {
		// keep whatever was known before
		metrics.BalanceFetchErrors.WithLabelValues(string(network)).Inc()
		t.logger.Debug("balance refresh failed",
			zap.String("network", string(network)),
			zap.String("token", string(token)),
			zap.Error(err))
		return
	}

	t.mu.Lock()
	// a late response for a previous account must not leak in
	if t.account == account {
		t.balances[key{network: network, token: token}] = Balance{
			Atomic:    atomic,
			Known:     true,
			FetchedAt: t.now(),
		}
	}
	t.mu.Unlock()

	if tokenCfg, err := tokens.ForChain(token, network); err == nil {
		human, _ := decimal.NewFromBigInt(atomic, -tokenCfg.Decimals).Float64()
		metrics.WalletBalance.WithLabelValues(string(network), string(token)).Set(human)
	}
}
