package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for contact reconciliation.
// Tracks outcomes, demotions and the latency of the transactional critical path.
type Metrics struct {
	Reconciliations   *prometheus.CounterVec
	Demotions         prometheus.Counter
	ReconcileDuration prometheus.Histogram
	TxRetries         prometheus.Counter
	LockWaitDuration  prometheus.Histogram
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_reconciliations_total",
			Help: "Total reconciliation calls by outcome",
		}, []string{"outcome"}),
		Demotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "identity_demotions_total",
			Help: "Total former primaries demoted to secondary",
		}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identity_reconcile_duration_seconds",
			Help:    "Duration of Consolidate calls including lock acquisition",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "identity_tx_retries_total",
			Help: "Total reconciliation transactions retried after a serialization failure or deadlock",
		}),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identity_lock_wait_duration_seconds",
			Help:    "Time spent acquiring the distributed identity lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
	}
}

// ObserveReconcile records one finished Consolidate call.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveReconcile(outcome string, demoted int, start time.Time) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(outcome).Inc()
	if demoted > 0 {
		m.Demotions.Add(float64(demoted))
	}
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}

// IncrementTxRetry records one retried transaction attempt.
func (m *Metrics) IncrementTxRetry() {
	if m == nil {
		return
	}
	m.TxRetries.Inc()
}

// ObserveLockWait records how long the distributed lock took to acquire.
func (m *Metrics) ObserveLockWait(start time.Time) {
	if m == nil {
		return
	}
	m.LockWaitDuration.Observe(time.Since(start).Seconds())
}
