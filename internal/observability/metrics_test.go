package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordRequest(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/v1/sla/policies", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/api/v1/sla/policies", "GET", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/v1/sla/policies", "GET", "200")))
}

func TestMetrics_ComputationOutcome(t *testing.T) {
	m := NewMetrics()
	m.ObserveComputation("compute_deadlines", nil, time.Millisecond)
	m.ObserveComputation("compute_deadlines", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.slaComputations.WithLabelValues("compute_deadlines", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.slaComputations.WithLabelValues("compute_deadlines", "error")))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "INTERNAL_ERROR")
		m.ObserveComputation("x", nil, 0)
		m.RecordThresholdCrossed("response", "warning")
		m.RecordEventRelayed("sla.threshold_crossed", nil)
	})
}
