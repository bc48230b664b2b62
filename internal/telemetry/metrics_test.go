package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionOutcome(OutcomeStarted)
	m.SessionOutcome(OutcomeStarted)
	m.SessionOutcome(OutcomeCompleted)
	m.Answer("coarse", true)
	m.Answer("coarse", false)
	m.Answer("fine", true)
	m.Duplicate()
	m.Substituted(50000, 20000)
	m.Degraded()
	m.Rejected()
	m.Fallback()
	m.ObserveStep("answer", time.Now().Add(-10*time.Millisecond))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeStarted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Sessions.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("coarse", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("coarse", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Duplicates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Substitutions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedQuestions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedDistractors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimilarityFallbacks))

	n, err := testutil.GatherAndCount(reg, "lexisurvey_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOutcome(OutcomeAborted)
		m.Answer("verify", true)
		m.Duplicate()
		m.Substituted(1, 2)
		m.Degraded()
		m.Rejected()
		m.Fallback()
		m.ObserveStep("start", time.Now())
	})
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
