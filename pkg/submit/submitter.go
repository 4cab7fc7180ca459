package submit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/tokens"
)

// Receipt is the outcome of a mined transaction
type Receipt struct {
	TxHash  string
	Status  uint64
	GasUsed uint64
}

// Wallet abstracts the signer and chain clients. Implementations live
// in pkg/wallet; tests substitute func-field mocks.
type Wallet interface {
	ProviderProbe

	Address() string
	SubmitDeposit(ctx context.Context, token tokens.Symbol, amount *big.Int, recipient string) (string, error)
	SubmitBurn(ctx context.Context, token tokens.Symbol, amount *big.Int, recipient string) (string, error)
	SubmitApproval(ctx context.Context, network tokens.Network, token tokens.Symbol, amount *big.Int) (string, error)
	Allowance(ctx context.Context, network tokens.Network, token tokens.Symbol, owner string) (*big.Int, error)
	WaitMined(ctx context.Context, network tokens.Network, txHash string) (*Receipt, error)
}

// PollStarter begins status polling for a freshly created operation
type PollStarter interface {
	Start(ctx context.Context, operationID string)
}

// Config holds the submission flow policy
type Config struct {
	SepoliaChainID       int64
	GoliathChainID       int64
	SepoliaConfirmations int
	GoliathConfirmations int
	MaxRetries           int
	RetryDelay           time.Duration
	MiningTimeout        time.Duration
}

// Submitter runs the deposit, burn, and approval flows
type Submitter struct {
	wallet    Wallet
	store     *bridge.Store
	poller    PollStarter
	readiness *Readiness
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmitter creates a submitter
func NewSubmitter(wallet Wallet, store *bridge.Store, poller PollStarter, readiness *Readiness, cfg Config, logger *zap.Logger) *Submitter {
	return &Submitter{
		wallet:    wallet,
		store:     store,
		poller:    poller,
		readiness: readiness,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Deposit moves an asset from Sepolia to Goliath. It returns the new
// operation id once the origin transaction is submitted; mining is
// awaited before returning, but a mining timeout is not an error.
func (s *Submitter) Deposit(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return s.submit(ctx, s.depositSubmission(token, amountHuman, recipient), true)
}

// DepositAsync returns as soon as the origin transaction is submitted
// and the operation record exists; the mining wait continues in the
// background. Used by the HTTP surface so a request never blocks for
// the full mining window.
func (s *Submitter) DepositAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return s.submit(ctx, s.depositSubmission(token, amountHuman, recipient), false)
}

func (s *Submitter) depositSubmission(token tokens.Symbol, amountHuman, recipient string) submission {
	return submission{
		kind:          "deposit",
		direction:     bridge.DirectionSepoliaToGoliath,
		token:         token,
		amountHuman:   amountHuman,
		recipient:     recipient,
		origin:        tokens.NetworkSepolia,
		originChainID: s.cfg.SepoliaChainID,
		destChainID:   s.cfg.GoliathChainID,
		confirmations: s.cfg.SepoliaConfirmations,
		send:          s.wallet.SubmitDeposit,
	}
}

// Burn moves an asset from Goliath back to Sepolia
func (s *Submitter) Burn(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return s.submit(ctx, s.burnSubmission(token, amountHuman, recipient), true)
}

// BurnAsync is the non-blocking counterpart of Burn
func (s *Submitter) BurnAsync(ctx context.Context, token tokens.Symbol, amountHuman, recipient string) (string, error) {
	return s.submit(ctx, s.burnSubmission(token, amountHuman, recipient), false)
}

func (s *Submitter) burnSubmission(token tokens.Symbol, amountHuman, recipient string) submission {
	return submission{
		kind:          "burn",
		direction:     bridge.DirectionGoliathToSepolia,
		token:         token,
		amountHuman:   amountHuman,
		recipient:     recipient,
		origin:        tokens.NetworkGoliath,
		originChainID: s.cfg.GoliathChainID,
		destChainID:   s.cfg.SepoliaChainID,
		confirmations: s.cfg.GoliathConfirmations,
		send:          s.wallet.SubmitBurn,
	}
}

type submission struct {
	kind          string
	direction     bridge.Direction
	token         tokens.Symbol
	amountHuman   string
	recipient     string
	origin        tokens.Network
	originChainID int64
	destChainID   int64
	confirmations int
	send          func(ctx context.Context, token tokens.Symbol, amount *big.Int, recipient string) (string, error)
}

func (s *Submitter) submit(ctx context.Context, sub submission, wait bool) (string, error) {
	log := s.logger.With(
		zap.String("kind", sub.kind),
		zap.String("token", string(sub.token)),
		zap.String("amount", sub.amountHuman))

	s.store.SetSubmitting(true)
	// the async path hands the flag to the background mining wait; the
	// safety-net reset in the store backstops both paths
	handedOff := false
	defer func() {
		if !handedOff {
			s.store.SetSubmitting(false)
		}
	}()
	s.store.SetError("")

	amount, err := tokens.ParseAmount(sub.amountHuman, sub.token, sub.origin)
	if err != nil {
		s.store.SetError(err.Error())
		return "", err
	}

	s.readiness.Ensure(ctx, sub.origin, s.wallet.Address())

	var txHash string
	err = s.retryPolicy(sub.origin).Do(ctx, func(ctx context.Context) error {
		var sendErr error
		txHash, sendErr = sub.send(ctx, sub.token, amount, sub.recipient)
		return sendErr
	})
	if err != nil {
		class := Classify(err)
		metrics.SubmissionAttempts.WithLabelValues(sub.kind, string(class)).Inc()
		log.Warn("submission failed", zap.String("class", string(class)), zap.Error(err))
		s.store.SetError(err.Error())
		return "", fmt.Errorf("%s failed: %w", sub.kind, err)
	}

	op := bridge.NewOperation(bridge.NewOperationParams{
		Direction:             sub.direction,
		Token:                 sub.token,
		AmountHuman:           sub.amountHuman,
		AmountAtomic:          amount.String(),
		Sender:                s.wallet.Address(),
		Recipient:             sub.recipient,
		OriginChainID:         sub.originChainID,
		DestinationChainID:    sub.destChainID,
		OriginTxHash:          txHash,
		RequiredConfirmations: sub.confirmations,
	}, s.now())

	// the record must exist and be active before the mining wait so
	// progress is visible while the transaction is still pending
	if err := s.store.Add(op); err != nil {
		s.store.SetError(err.Error())
		return "", err
	}
	metrics.OperationsTotal.WithLabelValues(string(sub.direction), string(sub.token)).Inc()
	s.poller.Start(ctx, op.ID)

	log.Info("origin transaction submitted",
		zap.String("operation_id", op.ID),
		zap.String("tx_hash", txHash))

	if !wait {
		handedOff = true
		go func() {
			defer s.store.SetSubmitting(false)
			if err := s.awaitMining(context.WithoutCancel(ctx), op.ID, sub, txHash, log); err != nil {
				log.Warn("background mining wait failed",
					zap.String("operation_id", op.ID),
					zap.Error(err))
			}
		}()
		return op.ID, nil
	}

	return op.ID, s.awaitMining(ctx, op.ID, sub, txHash, log)
}

// awaitMining waits for the origin transaction with a bounded timeout.
// Timing out is not a failure: the transaction may still land, so the
// operation goes DELAYED and the poller takes over. A revert is final.
func (s *Submitter) awaitMining(ctx context.Context, operationID string, sub submission, txHash string, log *zap.Logger) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.MiningTimeout)
	defer cancel()

	receipt, err := s.wallet.WaitMined(waitCtx, sub.origin, txHash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("mining wait timed out, handing off to poller",
				zap.String("operation_id", operationID))
			s.store.ApplyUpdate(operationID, bridge.StatusUpdate{
				Status:       bridge.StatusDelayed,
				ErrorMessage: "transaction not mined within the expected window",
			})
			metrics.SubmissionAttempts.WithLabelValues(sub.kind, "delayed").Inc()
			return nil
		}
		s.store.SetError(err.Error())
		return fmt.Errorf("mining wait failed: %w", err)
	}

	if receipt.Status == 0 {
		s.store.ApplyUpdate(operationID, bridge.StatusUpdate{
			Status:       bridge.StatusFailed,
			ErrorMessage: "transaction reverted",
		})
		metrics.SubmissionAttempts.WithLabelValues(sub.kind, "reverted").Inc()
		s.store.SetError("transaction reverted")
		return fmt.Errorf("transaction %s reverted", txHash)
	}

	s.store.ApplyUpdate(operationID, bridge.StatusUpdate{
		Status:              bridge.StatusConfirming,
		OriginConfirmations: 1,
	})
	metrics.SubmissionAttempts.WithLabelValues(sub.kind, "mined").Inc()
	metrics.GasUsed.WithLabelValues(sub.kind).Observe(float64(receipt.GasUsed))

	log.Info("origin transaction mined", zap.String("operation_id", operationID))
	return nil
}

// Approve grants the bridge contract an ERC-20 allowance. Native
// assets never need one.
func (s *Submitter) Approve(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) error {
	if !tokens.RequiresApproval(token, network) {
		return nil
	}

	s.store.SetApproving(true)
	defer s.store.SetApproving(false)

	amount, err := tokens.ParseAmount(amountHuman, token, network)
	if err != nil {
		return err
	}

	s.readiness.Ensure(ctx, network, s.wallet.Address())

	var txHash string
	err = s.retryPolicy(network).Do(ctx, func(ctx context.Context) error {
		var sendErr error
		txHash, sendErr = s.wallet.SubmitApproval(ctx, network, token, amount)
		return sendErr
	})
	if err != nil {
		metrics.SubmissionAttempts.WithLabelValues("approve", string(Classify(err))).Inc()
		return fmt.Errorf("approval failed: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.MiningTimeout)
	defer cancel()

	receipt, err := s.wallet.WaitMined(waitCtx, network, txHash)
	if err != nil {
		return fmt.Errorf("approval mining wait failed: %w", err)
	}
	if receipt.Status == 0 {
		metrics.SubmissionAttempts.WithLabelValues("approve", "reverted").Inc()
		return fmt.Errorf("approval transaction %s reverted", txHash)
	}

	metrics.SubmissionAttempts.WithLabelValues("approve", "mined").Inc()
	s.logger.Info("allowance granted",
		zap.String("network", string(network)),
		zap.String("token", string(token)),
		zap.String("tx_hash", txHash))
	return nil
}

// HasAllowance reports whether the current allowance covers the amount
func (s *Submitter) HasAllowance(ctx context.Context, network tokens.Network, token tokens.Symbol, amountHuman string) (bool, error) {
	if !tokens.RequiresApproval(token, network) {
		return true, nil
	}

	amount, err := tokens.ParseAmount(amountHuman, token, network)
	if err != nil {
		return false, err
	}

	allowance, err := s.wallet.Allowance(ctx, network, token, s.wallet.Address())
	if err != nil {
		return false, fmt.Errorf("allowance check failed: %w", err)
	}
	return allowance.Cmp(amount) >= 0, nil
}

func (s *Submitter) retryPolicy(network tokens.Network) RetryPolicy {
	return RetryPolicy{
		MaxRetries: s.cfg.MaxRetries,
		Delay:      s.cfg.RetryDelay,
		BeforeRetry: func(ctx context.Context) {
			s.readiness.Ensure(ctx, network, s.wallet.Address())
		},
		Logger: s.logger,
	}
}
