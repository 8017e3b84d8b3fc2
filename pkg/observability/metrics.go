package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment attempts by provider, type and outcome",
		},
		[]string{"provider", "payment_type", "status"},
	)

	paymentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_call_duration_seconds",
			Help:    "Duration of provider payment calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	refundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Total number of refund attempts by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	idempotentReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idempotent_replays_total",
			Help: "Payment requests answered from the ledger without a provider call",
		},
		[]string{"provider"},
	)

	reconcileSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_sweeps_total",
			Help: "Total number of reconciliation sweeps executed",
		},
	)

	reconciledTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciled_transactions_total",
			Help: "Transactions resolved by the reconciliation sweep",
		},
		[]string{"provider", "resolved_status"},
	)
)

// RecordPayment counts one payment attempt outcome
func RecordPayment(provider, paymentType, status string) {
	paymentsTotal.WithLabelValues(provider, paymentType, status).Inc()
}

// ObserveProviderCall records the latency of one provider call
func ObserveProviderCall(provider, operation string, elapsed time.Duration) {
	paymentDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// RecordRefund counts one refund attempt outcome
func RecordRefund(provider, status string) {
	refundsTotal.WithLabelValues(provider, status).Inc()
}

// RecordIdempotentReplay counts a request served from the ledger
func RecordIdempotentReplay(provider string) {
	idempotentReplaysTotal.WithLabelValues(provider).Inc()
}

// RecordSweep counts one reconciliation sweep
func RecordSweep() {
	reconcileSweepsTotal.Inc()
}

// RecordReconciled counts a transaction resolved by the sweep
func RecordReconciled(provider, resolvedStatus string) {
	reconciledTransactionsTotal.WithLabelValues(provider, resolvedStatus).Inc()
}
