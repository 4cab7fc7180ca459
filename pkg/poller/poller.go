// Package poller drives status refresh for in-flight bridge
// operations. Each tracked operation gets its own polling loop keyed
// by operation id; restarting a loop bumps a generation token so a
// response still in flight from the old loop can never clobber newer
// state.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/statusapi"
)

// StatusClient is the slice of the status authority the poller needs
type StatusClient interface {
	GetStatus(ctx context.Context, q statusapi.StatusQuery) (*statusapi.StatusResponse, error)
}

// Config tunes the polling loops
type Config struct {
	Interval         time.Duration
	FailureThreshold int
	BackfillAttempts int
	StuckThreshold   time.Duration
}

type session struct {
	generation uint64
	cancel     context.CancelFunc
}

// Poller schedules one polling loop per active operation
type Poller struct {
	client StatusClient
	store  *bridge.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	nextGen  uint64
	wg       sync.WaitGroup
}

// New creates a poller
func New(client StatusClient, store *bridge.Store, cfg Config, logger *zap.Logger) *Poller {
	return &Poller{
		client:   client,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Start begins (or restarts) polling for an operation. A restart
// cancels the previous loop and advances the generation so its
// in-flight response is discarded.
func (p *Poller) Start(ctx context.Context, operationID string) {
	p.mu.Lock()
	if prev, ok := p.sessions[operationID]; ok {
		prev.cancel()
	}
	p.nextGen++
	gen := p.nextGen

	loopCtx, cancel := context.WithCancel(ctx)
	p.sessions[operationID] = &session{generation: gen, cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(loopCtx, operationID, gen)
}

// Stop ends polling for an operation
func (p *Poller) Stop(operationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[operationID]; ok {
		s.cancel()
		delete(p.sessions, operationID)
	}
}

// StopAll ends every polling loop and waits for them to exit
func (p *Poller) StopAll() {
	p.mu.Lock()
	for id, s := range p.sessions {
		s.cancel()
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Resume starts polling for every restored operation that still needs
// it: non-terminal operations, and terminal ones missing a destination
// tx hash that backfill may still recover.
func (p *Poller) Resume(ctx context.Context) {
	for _, op := range p.store.All() {
		if !op.Status.Terminal() || op.DestinationTxHash == "" {
			p.Start(ctx, op.ID)
		}
	}
}

// current reports whether gen is still the live generation for the id
func (p *Poller) current(operationID string, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[operationID]
	return ok && s.generation == gen
}

// release removes the session only if it still belongs to gen, so an
// outgoing loop cannot tear down its replacement.
func (p *Poller) release(operationID string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[operationID]; ok && s.generation == gen {
		s.cancel()
		delete(p.sessions, operationID)
	}
}

func (p *Poller) run(ctx context.Context, operationID string, gen uint64) {
	defer p.wg.Done()
	defer p.release(operationID, gen)

	log := p.logger.With(zap.String("operation_id", operationID))
	log.Debug("polling started", zap.Uint64("generation", gen))

	state := &loopState{
		backfillLeft: p.cfg.BackfillAttempts,
		lastChange:   p.now(),
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		done := p.poll(ctx, operationID, gen, log, state)
		if done {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// loopState carries per-loop progress tracking. UpdatedAt refreshes on
// every merge, so stuck detection keys off status changes observed by
// this loop instead.
type loopState struct {
	failures     int
	backfillLeft int
	lastStatus   bridge.Status
	lastChange   time.Time
}

// poll performs one refresh. It returns true when the loop should end.
func (p *Poller) poll(ctx context.Context, operationID string, gen uint64, log *zap.Logger, state *loopState) bool {
	op, ok := p.store.Get(operationID)
	if !ok {
		log.Debug("operation removed, polling stopped")
		return true
	}

	if op.Status != state.lastStatus {
		state.lastStatus = op.Status
		state.lastChange = p.now()
	}

	if op.Status.Terminal() {
		// terminal with a destination hash needs nothing more; without
		// one, a bounded number of extra polls tries to backfill it
		if op.DestinationTxHash != "" || state.backfillLeft <= 0 {
			log.Debug("polling finished", zap.String("status", string(op.Status)))
			return true
		}
		state.backfillLeft--
	}

	if op.OriginTxHash == "" && op.DepositID == "" && op.WithdrawID == "" {
		// nothing to query by yet; the submitter will fill the hash in
		return false
	}

	resp, err := p.client.GetStatus(ctx, statusapi.StatusQuery{
		OriginTxHash: op.OriginTxHash,
		DepositID:    op.DepositID,
		WithdrawID:   op.WithdrawID,
	})

	if !p.current(operationID, gen) {
		log.Debug("dropping stale poll response", zap.Uint64("generation", gen))
		return true
	}

	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		state.failures++
		metrics.StatusPollsTotal.WithLabelValues("error").Inc()
		log.Warn("status poll failed", zap.Int("consecutive_failures", state.failures), zap.Error(err))
		if state.failures >= p.cfg.FailureThreshold {
			p.store.SetPollingError("unable to refresh bridge status: " + err.Error())
		}
		return false
	}

	state.failures = 0
	p.store.ClearPollingError()

	if resp == nil {
		// the authority has not indexed the operation yet
		metrics.StatusPollsTotal.WithLabelValues("not_found").Inc()
		p.markDelayedIfStuck(op, state)
		return false
	}

	metrics.StatusPollsTotal.WithLabelValues("ok").Inc()
	p.store.ApplyUpdate(operationID, bridge.StatusUpdate{
		Status:                  resp.Status,
		OriginConfirmations:     resp.OriginConfirmations,
		DestinationTxHash:       resp.DestinationTxHash,
		DepositID:               resp.DepositID,
		WithdrawID:              resp.WithdrawID,
		ErrorMessage:            resp.Error,
		EstimatedCompletionTime: resp.EstimatedCompletionTime,
	})

	if resp.Status.Terminal() && resp.DestinationTxHash != "" {
		log.Info("operation reached terminal status", zap.String("status", string(resp.Status)))
		return true
	}

	if resp.Status == op.Status {
		p.markDelayedIfStuck(op, state)
	}
	return false
}

// markDelayedIfStuck is a client-side liveness heuristic: an operation
// sitting in PENDING_ORIGIN_TX past the threshold without any observed
// progress is flagged DELAYED so a slowdown surfaces instead of
// silence. It never overrides what the authority reports.
func (p *Poller) markDelayedIfStuck(op bridge.Operation, state *loopState) {
	if op.Status != bridge.StatusPendingOriginTx {
		return
	}
	if p.now().Sub(state.lastChange) > p.cfg.StuckThreshold {
		p.logger.Warn("operation stuck, marking delayed",
			zap.String("operation_id", op.ID),
			zap.String("status", string(op.Status)))
		p.store.ApplyUpdate(op.ID, bridge.StatusUpdate{
			Status:       bridge.StatusDelayed,
			ErrorMessage: "no progress observed, the transaction may still land",
		})
	}
}
