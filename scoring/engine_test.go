package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"votematch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topicKey struct {
	user      string
	candidate int64
	topic     int64
}

type fakeStore struct {
	mu         sync.Mutex
	candidates map[string]map[int64]Tally
	topics     map[topicKey]Tally

	failCandidate error
	failTopic     error
	failList      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		candidates: make(map[string]map[int64]Tally),
		topics:     make(map[topicKey]Tally),
	}
}

func (s *fakeStore) GetCandidateScore(_ context.Context, userID string, candidateID int64) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates[userID][candidateID], nil
}

func (s *fakeStore) UpsertCandidateScore(_ context.Context, userID string, candidateID int64, tally Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.candidates[userID] == nil {
		s.candidates[userID] = make(map[int64]Tally)
	}
	s.candidates[userID][candidateID] = tally
	return nil
}

func (s *fakeStore) GetTopicScore(_ context.Context, userID string, candidateID, topicID int64) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[topicKey{userID, candidateID, topicID}], nil
}

func (s *fakeStore) UpsertTopicScore(_ context.Context, userID string, candidateID, topicID int64, tally Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topicKey{userID, candidateID, topicID}] = tally
	return nil
}

func (s *fakeStore) ListCandidateScores(_ context.Context, userID string) (map[int64]Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := make(map[int64]Tally, len(s.candidates[userID]))
	for id, t := range s.candidates[userID] {
		out[id] = t
	}
	return out, nil
}

func (s *fakeStore) IncrementCandidateScore(_ context.Context, userID string, candidateID int64, contribution float64) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCandidate != nil {
		return Tally{}, s.failCandidate
	}
	if s.candidates[userID] == nil {
		s.candidates[userID] = make(map[int64]Tally)
	}
	t := s.candidates[userID][candidateID]
	t.Accumulated += contribution
	t.Count++
	s.candidates[userID][candidateID] = t
	return t, nil
}

func (s *fakeStore) IncrementTopicScore(_ context.Context, userID string, candidateID, topicID int64, contribution float64) (Tally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTopic != nil {
		return Tally{}, s.failTopic
	}
	k := topicKey{userID, candidateID, topicID}
	t := s.topics[k]
	t.Accumulated += contribution
	t.Count++
	s.topics[k] = t
	return t, nil
}

type staticDirectory []models.Candidate

func (d staticDirectory) ListCandidates(context.Context) ([]models.Candidate, error) {
	return d, nil
}

const (
	economy = int64(1)
	health  = int64(2)
	alice   = int64(10)
	bob     = int64(20)
)

func answer(id, candidate, topic int64, topicName string, agree bool) models.ProfileAnswer {
	return models.ProfileAnswer{
		QuestionID:  id,
		Topic:       topicName,
		Statement:   "statement",
		Agree:       agree,
		CandidateID: candidate,
		TopicID:     topic,
	}
}

func scenarioAnswers() []models.ProfileAnswer {
	return []models.ProfileAnswer{
		answer(1, alice, economy, "economy", true),
		answer(2, alice, economy, "economy", false),
		answer(3, alice, health, "health", true),
		answer(4, bob, health, "health", true),
	}
}

func TestUpdateScoresFromAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("count tracks number of answers", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil)

		for i := int64(1); i <= 7; i++ {
			_, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(i, alice, economy, "economy", i%2 == 0))
			require.NoError(t, err)
		}

		tally, err := store.GetCandidateScore(ctx, "u1", alice)
		require.NoError(t, err)
		assert.Equal(t, 7, tally.Count)
		assert.Equal(t, 300.0, tally.Accumulated)
	})

	t.Run("mean of agree and disagree", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil)

		for i, agree := range []bool{true, true, false, true} {
			_, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(int64(i+1), alice, economy, "economy", agree))
			require.NoError(t, err)
		}

		tally, err := store.GetCandidateScore(ctx, "u1", alice)
		require.NoError(t, err)
		assert.Equal(t, 75.0, ScoreOf(tally))
	})

	t.Run("returns rows after the write", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), nil)

		update, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(1, alice, health, "health", true))
		require.NoError(t, err)
		assert.Equal(t, alice, update.CandidateID)
		assert.Equal(t, health, update.TopicID)
		assert.Equal(t, Tally{Accumulated: 100, Count: 1}, update.Candidate)
		assert.Equal(t, Tally{Accumulated: 100, Count: 1}, update.Topic)
	})

	t.Run("topic count never exceeds candidate count", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil)

		for _, a := range scenarioAnswers() {
			_, err := engine.UpdateScoresFromAnswer(ctx, "u1", a)
			require.NoError(t, err)
		}

		for k, topic := range store.topics {
			candidate, err := store.GetCandidateScore(ctx, k.user, k.candidate)
			require.NoError(t, err)
			assert.LessOrEqual(t, topic.Count, candidate.Count)
		}
	})

	t.Run("unknown candidate writes nothing", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil)

		_, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(1, 0, economy, "economy", true))
		require.ErrorIs(t, err, ErrUnknownCandidate)

		scores, err := store.ListCandidateScores(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		store := newFakeStore()
		boom := errors.New("connection refused")
		store.failCandidate = boom
		engine := NewEngine(store, nil)

		_, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(1, alice, economy, "economy", true))
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("topic failure leaves candidate row written", func(t *testing.T) {
		store := newFakeStore()
		store.failTopic = errors.New("timeout")
		engine := NewEngine(store, nil)

		update, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(1, alice, economy, "economy", true))
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Equal(t, 1, update.Candidate.Count)

		topic, err := store.GetTopicScore(ctx, "u1", alice, economy)
		require.NoError(t, err)
		assert.Zero(t, topic.Count)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := engine.UpdateScoresFromAnswer(ctx, "u1", answer(int64(i), alice, economy, "economy", true))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		tally, err := store.GetCandidateScore(ctx, "u1", alice)
		require.NoError(t, err)
		assert.Equal(t, 50, tally.Count)
	})
}

func TestScoreOf(t *testing.T) {
	testCases := []struct {
		name  string
		tally Tally
		want  float64
	}{
		{"empty row", Tally{}, 0},
		{"all agree", Tally{Accumulated: 300, Count: 3}, 100},
		{"all disagree", Tally{Accumulated: 0, Count: 3}, 0},
		{"mixed", Tally{Accumulated: 200, Count: 3}, 200.0 / 3},
		{"clamped high", Tally{Accumulated: 500, Count: 2}, 100},
		{"clamped low", Tally{Accumulated: -10, Count: 1}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreOf(tc.tally)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestGetCandidateScores(t *testing.T) {
	ctx := context.Background()
	directory := staticDirectory{
		{ID: alice, Name: "Alice Martin", Party: "Blue"},
		{ID: bob, Name: "Bob Durand", Party: "Green"},
	}

	t.Run("empty profile", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), directory)

		scores, err := engine.GetCandidateScores(ctx, "nobody", true)
		require.NoError(t, err)
		assert.NotNil(t, scores)
		assert.Empty(t, scores)
	})

	t.Run("scenario", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), directory)
		for _, a := range scenarioAnswers() {
			_, err := engine.UpdateScoresFromAnswer(ctx, "u1", a)
			require.NoError(t, err)
		}

		scores, err := engine.GetCandidateScores(ctx, "u1", false)
		require.NoError(t, err)
		require.Len(t, scores, 2)

		assert.Equal(t, bob, scores[0].CandidateID)
		assert.Equal(t, "Bob Durand", scores[0].CandidateName)
		assert.Equal(t, "Green", scores[0].Party)
		assert.Equal(t, 100.0, scores[0].Score)
		assert.Equal(t, 100, scores[0].MatchPercentage)

		assert.Equal(t, alice, scores[1].CandidateID)
		assert.InDelta(t, 66.67, scores[1].Score, 0.01)
		assert.Equal(t, 67, scores[1].MatchPercentage)
	})

	t.Run("normalized flag has no effect", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), directory)
		for _, a := range scenarioAnswers() {
			_, err := engine.UpdateScoresFromAnswer(ctx, "u1", a)
			require.NoError(t, err)
		}

		raw, err := engine.GetCandidateScores(ctx, "u1", false)
		require.NoError(t, err)
		normalized, err := engine.GetCandidateScores(ctx, "u1", true)
		require.NoError(t, err)
		assert.Equal(t, raw, normalized)
	})

	t.Run("ties break by candidate id", func(t *testing.T) {
		store := newFakeStore()
		for _, id := range []int64{30, 5, 12, 7} {
			require.NoError(t, store.UpsertCandidateScore(ctx, "u1", id, Tally{Accumulated: 50, Count: 1}))
		}
		engine := NewEngine(store, nil)

		for i := 0; i < 10; i++ {
			scores, err := engine.GetCandidateScores(ctx, "u1", true)
			require.NoError(t, err)
			ids := make([]int64, 0, len(scores))
			for _, s := range scores {
				ids = append(ids, s.CandidateID)
			}
			assert.Equal(t, []int64{5, 7, 12, 30}, ids)
		}
	})

	t.Run("unknown candidate keeps id", func(t *testing.T) {
		store := newFakeStore()
		require.NoError(t, store.UpsertCandidateScore(ctx, "u1", 99, Tally{Accumulated: 100, Count: 1}))
		engine := NewEngine(store, directory)

		scores, err := engine.GetCandidateScores(ctx, "u1", true)
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, int64(99), scores[0].CandidateID)
		assert.Empty(t, scores[0].CandidateName)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newFakeStore()
		store.failList = errors.New("down")
		engine := NewEngine(store, directory)

		_, err := engine.GetCandidateScores(ctx, "u1", true)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestHasStrongMatch(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name  string
		tally Tally
		want  bool
	}{
		{"just below", Tally{Accumulated: 59.999, Count: 1}, false},
		{"exactly at", Tally{Accumulated: 60, Count: 1}, true},
		{"above", Tally{Accumulated: 200, Count: 2}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			require.NoError(t, store.UpsertCandidateScore(ctx, "u1", alice, tc.tally))
			engine := NewEngine(store, nil)

			got, err := engine.HasStrongMatch(ctx, "u1", 60.0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("no rows", func(t *testing.T) {
		engine := NewEngine(newFakeStore(), nil)
		got, err := engine.HasStrongMatch(ctx, "u1", 60.0)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("pure helper agrees", func(t *testing.T) {
		scores := []models.CandidateScore{{Score: 59.999}, {Score: 12}}
		assert.False(t, StrongMatch(scores, 60))
		scores = append(scores, models.CandidateScore{Score: 60})
		assert.True(t, StrongMatch(scores, 60))
	})
}

func TestGetTopicScores(t *testing.T) {
	t.Run("scenario breakdown", func(t *testing.T) {
		got := GetTopicScores(alice, scenarioAnswers(), nil)
		assert.Equal(t, map[string]float64{"economy": 50, "health": 100}, got)
	})

	t.Run("topics without answers are omitted", func(t *testing.T) {
		got := GetTopicScores(bob, scenarioAnswers(), nil)
		assert.Equal(t, map[string]float64{"health": 100}, got)
		_, ok := got["economy"]
		assert.False(t, ok)
	})

	t.Run("candidate resolved from opinions", func(t *testing.T) {
		answers := []models.ProfileAnswer{
			{QuestionID: 1, Agree: false},
			{QuestionID: 2, Agree: true},
		}
		opinions := map[int64]models.Opinion{
			1: {ID: 1, CandidateID: alice, Topic: "housing"},
			2: {ID: 2, CandidateID: bob, Topic: "housing"},
		}
		assert.Equal(t, map[string]float64{"housing": 0}, GetTopicScores(alice, answers, opinions))
	})

	t.Run("no answers", func(t *testing.T) {
		assert.Empty(t, GetTopicScores(alice, nil, nil))
	})
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	engine := NewEngine(store, nil)

	// Drifted rows, as left behind by a half-applied update.
	require.NoError(t, store.UpsertCandidateScore(ctx, "u1", alice, Tally{Accumulated: 900, Count: 1}))

	answers := append(scenarioAnswers(), answer(5, 0, economy, "economy", true))
	require.NoError(t, engine.Recompute(ctx, "u1", answers))

	got, err := store.GetCandidateScore(ctx, "u1", alice)
	require.NoError(t, err)
	assert.Equal(t, Tally{Accumulated: 200, Count: 3}, got)

	got, err = store.GetCandidateScore(ctx, "u1", bob)
	require.NoError(t, err)
	assert.Equal(t, Tally{Accumulated: 100, Count: 1}, got)

	got, err = store.GetTopicScore(ctx, "u1", alice, economy)
	require.NoError(t, err)
	assert.Equal(t, Tally{Accumulated: 100, Count: 2}, got)
}
