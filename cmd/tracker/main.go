package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/pkg/api"
	apphttp "github.com/goliathlabs/bridge-tracker/pkg/app/http"
	"github.com/goliathlabs/bridge-tracker/pkg/balances"
	"github.com/goliathlabs/bridge-tracker/pkg/bridge"
	"github.com/goliathlabs/bridge-tracker/pkg/config"
	"github.com/goliathlabs/bridge-tracker/pkg/poller"
	"github.com/goliathlabs/bridge-tracker/pkg/statusapi"
	"github.com/goliathlabs/bridge-tracker/pkg/storage"
	"github.com/goliathlabs/bridge-tracker/pkg/submit"
	"github.com/goliathlabs/bridge-tracker/pkg/wallet"
)

const readinessMaxChecks = 3

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bridge tracker",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Operation store, restored from the last snapshot
	store := bridge.NewStore(cfg.Bridge.SubmittingResetAfter)
	snapshots := storage.NewStore(cfg.Storage.Path, cfg.Storage.Retention, cfg.Storage.MaxEntries, logger)
	operations, order := snapshots.Load()
	if len(operations) > 0 {
		store.LoadBulk(operations, order)
		logger.Info("Restored operations from snapshot",
			zap.String("path", cfg.Storage.Path),
			zap.Int("count", len(operations)))
	}

	// Wallet connects to both chains with one signing key
	signer, err := wallet.NewWallet(cfg.Sepolia, cfg.Goliath, logger)
	if err != nil {
		logger.Fatal("Failed to create wallet", zap.Error(err))
	}
	defer signer.Close()
	logger.Info("Wallet ready", zap.String("address", signer.Address()))

	// Status authority client and per-operation pollers
	authority := statusapi.NewClient(cfg.StatusAPI.BaseURL, cfg.StatusAPI.RequestTimeout)
	statusPoller := poller.New(authority, store, poller.Config{
		Interval:         cfg.Polling.Interval,
		FailureThreshold: cfg.Polling.FailureThreshold,
		BackfillAttempts: cfg.Polling.BackfillAttempts,
		StuckThreshold:   cfg.Polling.StuckThreshold,
	}, logger)
	statusPoller.Resume(ctx)
	defer statusPoller.StopAll()

	// Submission flow
	readiness := submit.NewReadiness(signer, cfg.Bridge.ReadinessSettleDelay, cfg.Bridge.ReadinessRecheckDelay, readinessMaxChecks, logger)
	submitter := submit.NewSubmitter(signer, store, statusPoller, readiness, submit.Config{
		SepoliaChainID:       cfg.Sepolia.ChainID,
		GoliathChainID:       cfg.Goliath.ChainID,
		SepoliaConfirmations: cfg.Sepolia.RequiredConfirmations,
		GoliathConfirmations: cfg.Goliath.RequiredConfirmations,
		MaxRetries:           cfg.Bridge.MaxRetries,
		RetryDelay:           cfg.Bridge.RetryDelay,
		MiningTimeout:        cfg.Bridge.MiningTimeout,
	}, logger)

	// Balance tracker for the signing wallet
	balanceTracker := balances.NewTracker(signer, balances.Config{
		NormalInterval:     cfg.Balances.NormalInterval,
		AggressiveInterval: cfg.Balances.AggressiveInterval,
		AggressiveWindow:   cfg.Balances.AggressiveWindow,
	}, logger)
	balanceTracker.SetAccount(signer.Address())
	go balanceTracker.Run(ctx)

	// Snapshot persistence on every change
	saver := storage.NewSaver(snapshots, store, logger)
	go saver.Run(ctx)

	handler := api.NewHandler(store, submitter, balanceTracker, authority, statusPoller, cfg, signer.Address(), logger)
	router := api.NewRouter(handler, cfg.Monitoring.Enabled)

	if err := apphttp.ServeAndWait(ctx, router, logger, &cfg.Server); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}

	logger.Info("Bridge tracker stopped")
}
