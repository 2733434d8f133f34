package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AnswerRecorded()
	m.AnswerRecorded()
	m.ScoreUpdate(StatusSuccess, 10*time.Millisecond)
	m.ScoreUpdate(StatusFailed, time.Millisecond)
	m.StrongMatch()
	m.ParaphraseRequest("anthropic", StatusSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.answersRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoreUpdates.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scoreUpdates.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strongMatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paraphraseRequests.WithLabelValues("anthropic", StatusSuccess)))

	count, err := testutil.GatherAndCount(reg, "votematch_score_update_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AnswerRecorded()
		m.ScoreUpdate(StatusSkipped, 0)
		m.StrongMatch()
		m.ParaphraseRequest("gemini", StatusFailed)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
