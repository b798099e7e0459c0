// Package metrics exposes Prometheus instrumentation for the payment engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsTotal counts executed payments by type and recorded status
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_payments_total",
			Help: "Total number of executed payments",
		},
		[]string{"type", "status"},
	)

	// PaymentAmount tracks the amount of each executed payment
	PaymentAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paybot_payment_amount",
			Help:    "Amount of tokens per executed payment",
			Buckets: []float64{0.01, 0.1, 1, 10, 100, 1000, 10000},
		},
		[]string{"token"},
	)

	// SplitsTotal counts split lifecycle events
	SplitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_splits_total",
			Help: "Total number of split payment events",
		},
		[]string{"event"},
	)

	// ConfirmationsPending gauges entries currently held in the confirmation cache
	ConfirmationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paybot_confirmations_pending",
			Help: "Pending payment confirmations awaiting user approval",
		},
	)

	// ConfirmationsExpired counts confirmations dropped by the TTL sweep
	ConfirmationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paybot_confirmations_expired_total",
			Help: "Confirmations removed unused by the TTL sweep",
		},
	)

	// LedgerRetries counts retried ledger writes by operation
	LedgerRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_ledger_retries_total",
			Help: "Ledger writes retried after transient failures",
		},
		[]string{"op"},
	)

	// ChainRequestDuration tracks blockchain RPC call latency
	ChainRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paybot_chain_request_duration_seconds",
			Help:    "Chain RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// UpdatesTotal counts inbound chat updates by kind
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paybot_updates_total",
			Help: "Inbound chat platform updates processed",
		},
		[]string{"kind"},
	)
)
