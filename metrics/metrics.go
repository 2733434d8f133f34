package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Score update outcomes
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds the quiz counters. All methods are safe on a nil receiver so
// components can run without metrics wired.
type Metrics struct {
	answersRecorded    prometheus.Counter
	scoreUpdates       *prometheus.CounterVec
	strongMatches      prometheus.Counter
	paraphraseRequests *prometheus.CounterVec
	scoreUpdateLatency prometheus.Histogram
}

// New creates the metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		answersRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "votematch_answers_recorded_total",
			Help: "Answers persisted.",
		}),
		scoreUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "votematch_score_updates_total",
				Help: "Score updates attempted after an answer, by outcome.",
			},
			[]string{"status"},
		),
		strongMatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "votematch_strong_matches_total",
			Help: "Answers after which a user had a strong candidate match.",
		}),
		paraphraseRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "votematch_paraphrase_requests_total",
				Help: "Statements sent to the language model, by outcome.",
			},
			[]string{"provider", "status"},
		),
		scoreUpdateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "votematch_score_update_duration_seconds",
			Help:    "Time spent applying one answer to the score store.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) AnswerRecorded() {
	if m == nil {
		return
	}
	m.answersRecorded.Inc()
}

// ScoreUpdate records the outcome and duration of one score update
func (m *Metrics) ScoreUpdate(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.scoreUpdates.WithLabelValues(status).Inc()
	m.scoreUpdateLatency.Observe(took.Seconds())
}

func (m *Metrics) StrongMatch() {
	if m == nil {
		return
	}
	m.strongMatches.Inc()
}

func (m *Metrics) ParaphraseRequest(provider, status string) {
	if m == nil {
		return
	}
	m.paraphraseRequests.WithLabelValues(provider, status).Inc()
}
