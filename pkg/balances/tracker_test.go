package balances

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// MockReader scripts per-test balance answers
type MockReader struct {
	mu               sync.Mutex
	TokenBalanceFunc func(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) (*big.Int, error)
	calls            int
}

func (m *MockReader) TokenBalance(ctx context.Context, network tokens.Network, token tokens.Symbol, account string) (*big.Int, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.TokenBalanceFunc(ctx, network, token, account)
}

func (m *MockReader) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testTrackerConfig() Config {
	return Config{
		NormalInterval:     10 * time.Millisecond,
		AggressiveInterval: 2 * time.Millisecond,
		AggressiveWindow:   50 * time.Millisecond,
	}
}

const account = "0x1111111111111111111111111111111111111111"

func TestTrackerUnknownBeforeFirstFetch(t *testing.T) {
	tr := NewTracker(&MockReader{}, testTrackerConfig(), zap.NewNop())

	b := tr.Get(tokens.NetworkSepolia, tokens.SymbolETH)
	assert.False(t, b.Known, "never-fetched must not read as zero")
	assert.Empty(t, b.Formatted(tokens.SymbolETH, tokens.NetworkSepolia, 6))
}

func TestTrackerRefreshAll(t *testing.T) {
	reader := &MockReader{
		TokenBalanceFunc: func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
			assert.Equal(t, account, acct)
			return big.NewInt(5e15), nil
		},
	}
	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)

	tr.RefreshAll(context.Background())

	b := tr.Get(tokens.NetworkSepolia, tokens.SymbolETH)
	require.True(t, b.Known)
	assert.Equal(t, "5000000000000000", b.Atomic.String())
	assert.Equal(t, "0.005", b.Formatted(tokens.SymbolETH, tokens.NetworkSepolia, 6))

	assert.True(t, tr.Get(tokens.NetworkGoliath, tokens.SymbolETH).Known)
}

func TestTrackerFetchedZeroIsKnown(t *testing.T) {
	reader := &MockReader{
		TokenBalanceFunc: func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
			return big.NewInt(0), nil
		},
	}
	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)
	tr.RefreshAll(context.Background())

	b := tr.Get(tokens.NetworkSepolia, tokens.SymbolETH)
	assert.True(t, b.Known)
	assert.Equal(t, "0", b.Formatted(tokens.SymbolETH, tokens.NetworkSepolia, 6))
}

func TestTrackerFailureKeepsStaleBalance(t *testing.T) {
	var mu sync.Mutex
	failing := false

	reader := &MockReader{}
	reader.TokenBalanceFunc = func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return nil, errors.New("rpc down")
		}
		return big.NewInt(7), nil
	}

	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)
	tr.RefreshAll(context.Background())

	mu.Lock()
	failing = true
	mu.Unlock()
	tr.RefreshAll(context.Background())

	b := tr.Get(tokens.NetworkSepolia, tokens.SymbolETH)
	require.True(t, b.Known, "a failed refresh keeps the stale value")
	assert.Equal(t, "7", b.Atomic.String())
}

func TestTrackerAccountChangeResets(t *testing.T) {
	reader := &MockReader{
		TokenBalanceFunc: func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
			return big.NewInt(9), nil
		},
	}
	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)
	tr.RefreshAll(context.Background())

	// reconnecting the same account keeps known balances
	tr.SetAccount(account)
	assert.True(t, tr.Get(tokens.NetworkSepolia, tokens.SymbolETH).Known)

	// a transient disconnect (empty account) keeps them too
	tr.SetAccount("")
	assert.True(t, tr.Get(tokens.NetworkSepolia, tokens.SymbolETH).Known)

	// a different account resets to unknown
	tr.SetAccount("0x2222222222222222222222222222222222222222")
	assert.False(t, tr.Get(tokens.NetworkSepolia, tokens.SymbolETH).Known)
}

func TestTrackerAggressiveWindow(t *testing.T) {
	reader := &MockReader{
		TokenBalanceFunc: func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
			return big.NewInt(1), nil
		},
	}
	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)

	assert.Equal(t, tr.cfg.NormalInterval, tr.interval())

	tr.BoostAfterSubmission()
	assert.Equal(t, tr.cfg.AggressiveInterval, tr.interval())

	assert.Eventually(t, func() bool {
		return tr.interval() == tr.cfg.NormalInterval
	}, time.Second, 5*time.Millisecond, "cadence reverts after the window")
}

func TestTrackerRunStopsOnCancel(t *testing.T) {
	reader := &MockReader{
		TokenBalanceFunc: func(ctx context.Context, network tokens.Network, token tokens.Symbol, acct string) (*big.Int, error) {
			return big.NewInt(1), nil
		},
	}
	tr := NewTracker(reader, testTrackerConfig(), zap.NewNop())
	tr.SetAccount(account)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return reader.Calls() > 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop on cancellation")
	}
}
