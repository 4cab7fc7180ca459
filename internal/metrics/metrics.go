package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts operations created by direction and token
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_operations_total",
			Help: "Total number of bridge operations created",
		},
		[]string{"direction", "token"},
	)

	// OperationsCompleted counts operations reaching a terminal status
	OperationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_operations_completed_total",
			Help: "Total number of operations reaching a terminal status",
		},
		[]string{"direction", "status"},
	)

	// OperationDuration tracks time from creation to completion
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_operation_duration_seconds",
			Help:    "Operation duration from creation to terminal status",
			Buckets: []float64{30, 60, 120, 180, 300, 600, 1200, 3600},
		},
		[]string{"direction"},
	)

	// StatusPollsTotal counts status authority polls by outcome
	StatusPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_status_polls_total",
			Help: "Total number of status authority polls",
		},
		[]string{"outcome"},
	)

	// SubmissionAttempts counts transaction submission attempts by kind
	// and outcome
	SubmissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_submission_attempts_total",
			Help: "Total number of transaction submission attempts",
		},
		[]string{"kind", "outcome"},
	)

	// SubmissionRetries counts retries by error classification
	SubmissionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_submission_retries_total",
			Help: "Total number of submission retries by error class",
		},
		[]string{"class"},
	)

	// PendingOperations tracks currently non-terminal operations
	PendingOperations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_pending_operations",
			Help: "Number of non-terminal operations by direction",
		},
		[]string{"direction"},
	)

	// WalletBalance tracks the tracked wallet balance by chain and token
	WalletBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_wallet_balance",
			Help: "Tracked wallet balance by chain and token",
		},
		[]string{"chain", "token"},
	)

	// BalanceFetchErrors counts balance refresh failures by chain
	BalanceFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_balance_fetch_errors_total",
			Help: "Total number of balance refresh failures",
		},
		[]string{"chain"},
	)

	// GasUsed tracks gas used for submitted transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_gas_used",
			Help:    "Gas used for submitted transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
		[]string{"kind"},
	)

	// SnapshotSize tracks how many operations the last snapshot held
	SnapshotSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_snapshot_operations",
			Help: "Number of operations in the last written snapshot",
		},
	)
)
