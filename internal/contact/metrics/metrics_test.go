package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReconcile(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReconcile("merged", 2, time.Now())
	m.ObserveReconcile("unchanged", 0, time.Now())
	m.IncrementTxRetry()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations.WithLabelValues("merged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations.WithLabelValues("unchanged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Demotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxRetries))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReconcile("merged", 1, time.Now())
		m.IncrementTxRetry()
		m.ObserveLockWait(time.Now())
	})
}
