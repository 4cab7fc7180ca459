package submit

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// ProviderProbe is the slice of the wallet used to check that the RPC
// provider answers before a transaction is attempted.
type ProviderProbe interface {
	BlockNumber(ctx context.Context, network tokens.Network) (uint64, error)
	NativeBalance(ctx context.Context, network tokens.Network, account string) (*big.Int, error)
}

// Readiness verifies the provider responds before the first
// transaction after a connect. Some providers initialize slowly and
// fail the first request; a block height query, a balance query, and a
// short settle delay flush that out.
type Readiness struct {
	probe        ProviderProbe
	settleDelay  time.Duration
	recheckDelay time.Duration
	maxChecks    int
	logger       *zap.Logger
}

// NewReadiness creates a readiness checker
func NewReadiness(probe ProviderProbe, settleDelay, recheckDelay time.Duration, maxChecks int, logger *zap.Logger) *Readiness {
	return &Readiness{
		probe:        probe,
		settleDelay:  settleDelay,
		recheckDelay: recheckDelay,
		maxChecks:    maxChecks,
		logger:       logger,
	}
}

// Ensure probes the provider until it answers or the check budget runs
// out. It only ever delays; the submission proceeds regardless of the
// outcome.
func (r *Readiness) Ensure(ctx context.Context, network tokens.Network, account string) {
	for attempt := 1; attempt <= r.maxChecks; attempt++ {
		if r.check(ctx, network, account) {
			select {
			case <-ctx.Done():
			case <-time.After(r.settleDelay):
			}
			return
		}

		r.logger.Debug("provider not ready yet",
			zap.String("network", string(network)),
			zap.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.recheckDelay):
		}
	}

	r.logger.Warn("provider readiness not confirmed, proceeding anyway",
		zap.String("network", string(network)))
}

func (r *Readiness) check(ctx context.Context, network tokens.Network, account string) bool {
	block, err := r.probe.BlockNumber(ctx, network)
	if err != nil || block == 0 {
		return false
	}
	if _, err := r.probe.NativeBalance(ctx, network, account); err != nil {
		return false
	}
	return true
}
