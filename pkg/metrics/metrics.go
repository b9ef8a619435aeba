// Package metrics defines the Prometheus collectors shared across the
// service. Collectors are package-level and registered once via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route, and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SettlementsTotal counts settlement attempts by kind (payout,
	// withdrawal) and terminal outcome (completed, failed, pending,
	// rejected, duplicate).
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// SettlementDuration observes end-to-end settlement latency, including
	// chain confirmation for withdrawals.
	SettlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "End-to-end settlement latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// EscrowBalanceGauge exports the escrow account's on-chain balance per
	// token, in whole-token units. Updated by the funding monitor.
	EscrowBalanceGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "escrow_balance",
			Help: "Escrow account balance per token",
		},
		[]string{"token"},
	)

	// EscrowTokenAvailable reports 1 when a token clears its funding
	// threshold, 0 otherwise.
	EscrowTokenAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "escrow_token_available",
			Help: "Whether the escrow holds enough of a token to accept bets",
		},
		[]string{"token"},
	)

	// PendingSettlementsGauge tracks records parked in the pending state
	// awaiting reconciliation.
	PendingSettlementsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_settlements",
			Help: "Transaction records awaiting reconciliation",
		},
	)

	// ReconciliationRunsTotal counts reconciler sweeps by result.
	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Reconciliation sweeps by result",
		},
		[]string{"result"},
	)

	// ReconciliationResolvedTotal counts pending records the reconciler
	// moved to a terminal state.
	ReconciliationResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_resolved_total",
			Help: "Pending records resolved by the reconciler",
		},
		[]string{"outcome"},
	)

	// WalletLockContentionTotal counts withdrawal attempts rejected because
	// the wallet's settlement lock was held.
	WalletLockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_lock_contention_total",
			Help: "Withdrawals rejected due to a held wallet lock",
		},
	)

	// DatabaseConnectionsGauge exports sql.DBStats by state.
	DatabaseConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "database_connections",
			Help: "Database connection pool state",
		},
		[]string{"state"},
	)
)
