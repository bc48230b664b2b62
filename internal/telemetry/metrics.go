package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lexisurvey"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Sessions counts session transitions.
	// Labels: outcome (started, completed, aborted)
	Sessions *prometheus.CounterVec

	// Answers counts scored answers.
	// Labels: phase (coarse, fine, verify), correct (true, false)
	Answers *prometheus.CounterVec

	// Duplicates counts resubmissions of an already scored question.
	Duplicates prometheus.Counter

	// Substitutions counts target ranks that had no item in the window.
	Substitutions prometheus.Counter

	// DegradedQuestions counts questions padded or short of options.
	DegradedQuestions prometheus.Counter

	// RejectedDistractors counts relation distractors the similarity
	// checker refused.
	RejectedDistractors prometheus.Counter

	// SimilarityFallbacks counts switches to the lexical heuristic.
	SimilarityFallbacks prometheus.Counter

	// StepDuration measures one orchestrator step.
	// Labels: op (start, answer)
	StepDuration *prometheus.HistogramVec
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Assessment sessions by outcome",
		}, []string{"outcome"}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Scored answers by phase and correctness",
		}, []string{"phase", "correct"}),
		Duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_submissions_total",
			Help:      "Answer submissions replaying an already scored question",
		}),
		Substitutions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_substitutions_total",
			Help:      "Target ranks replaced by the nearest available rank",
		}),
		DegradedQuestions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_questions_total",
			Help:      "Questions padded with arbitrary items or short of options",
		}),
		RejectedDistractors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_distractors_total",
			Help:      "Relationship distractors rejected as too similar to the answer",
		}),
		SimilarityFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_fallbacks_total",
			Help:      "Similarity checks answered by the lexical heuristic",
		}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Latency of one assessment step",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
	}
}

// Session outcomes.
const (
	OutcomeStarted   = "started"
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

func (m *Metrics) SessionOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Answer(phase string, correct bool) {
	if m == nil {
		return
	}
	c := "false"
	if correct {
		c = "true"
	}
	m.Answers.WithLabelValues(phase, c).Inc()
}

func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.Duplicates.Inc()
}

// Substituted matches survey.Options.OnSubstitute.
func (m *Metrics) Substituted(_, _ int) {
	if m == nil {
		return
	}
	m.Substitutions.Inc()
}

func (m *Metrics) Degraded() {
	if m == nil {
		return
	}
	m.DegradedQuestions.Inc()
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.RejectedDistractors.Inc()
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.SimilarityFallbacks.Inc()
}

// ObserveStep records the time since start under op.
func (m *Metrics) ObserveStep(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
