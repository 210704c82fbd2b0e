package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewWithRegistersCollectors(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.CacheHits.Inc()
	m.CacheMisses.Add(2)
	m.PoolExhausted.Inc()
	m.ActiveContexts.Set(5)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.PoolExhausted))
	assert.Equal(t, 5.0, promtestutil.ToFloat64(m.ActiveContexts))
}

func TestRecordOutcome(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.RecordOutcome(true, "")
	m.RecordOutcome(true, "")
	m.RecordOutcome(false, "timeout")

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("timeout")))
}

func TestRecordOutcomeNilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordOutcome(true, "") })
}
