package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"votematch/models"
)

const (
	agreeContribution    = 100.0
	disagreeContribution = 0.0
	minScore             = 0.0
	maxScore             = 100.0
)

// Engine turns agree/disagree answers into per-candidate match scores. It
// holds no state of its own; every tally lives in the Store.
type Engine struct {
	store      Store
	candidates CandidateDirectory
}

// ScoreUpdate is the state of the two rows touched by one answer
type ScoreUpdate struct {
	CandidateID int64
	TopicID     int64
	Candidate   Tally
	Topic       Tally
}

// NewEngine creates an engine over the given store. candidates may be nil, in
// which case scores carry ids only.
func NewEngine(store Store, candidates CandidateDirectory) *Engine {
	return &Engine{store: store, candidates: candidates}
}

// Contribution is the per-answer agreement score
func Contribution(agree bool) float64 {
	if agree {
		return agreeContribution
	}
	return disagreeContribution
}

// ScoreOf returns the mean agreement percentage of a tally, clamped to [0, 100]
func ScoreOf(t Tally) float64 {
	count := t.Count
	if count < 1 {
		count = 1
	}
	return math.Max(minScore, math.Min(maxScore, t.Accumulated/float64(count)))
}

// UpdateScoresFromAnswer folds one new answer into the user's candidate row and
// the matching topic row. It is not idempotent: calling it twice for the same
// answer counts the answer twice.
//
// The two rows are written independently. If the topic write fails after the
// candidate write landed, the error is returned and the rows disagree until the
// next Recompute.
func (e *Engine) UpdateScoresFromAnswer(ctx context.Context, userID string, answer models.ProfileAnswer) (ScoreUpdate, error) {
	if answer.CandidateID == 0 {
		return ScoreUpdate{}, fmt.Errorf("opinion %d: %w", answer.QuestionID, ErrUnknownCandidate)
	}

	contribution := Contribution(answer.Agree)
	update := ScoreUpdate{CandidateID: answer.CandidateID, TopicID: answer.TopicID}

	candidate, err := e.store.IncrementCandidateScore(ctx, userID, answer.CandidateID, contribution)
	if err != nil {
		return update, fmt.Errorf("update candidate %d: %w: %w", answer.CandidateID, ErrStoreUnavailable, err)
	}
	update.Candidate = candidate

	topic, err := e.store.IncrementTopicScore(ctx, userID, answer.CandidateID, answer.TopicID, contribution)
	if err != nil {
		return update, fmt.Errorf("update topic %d for candidate %d: %w: %w", answer.TopicID, answer.CandidateID, ErrStoreUnavailable, err)
	}
	update.Topic = topic

	return update, nil
}

// GetCandidateScores returns a score for every candidate the user has a row
// for, best match first. normalized is accepted for API compatibility; scores
// are already percentages so it changes nothing.
func (e *Engine) GetCandidateScores(ctx context.Context, userID string, normalized bool) ([]models.CandidateScore, error) {
	_ = normalized

	tallies, err := e.store.ListCandidateScores(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list candidate scores: %w: %w", ErrStoreUnavailable, err)
	}
	if len(tallies) == 0 {
		return []models.CandidateScore{}, nil
	}

	directory := map[int64]models.Candidate{}
	if e.candidates != nil {
		list, err := e.candidates.ListCandidates(ctx)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w: %w", ErrStoreUnavailable, err)
		}
		for _, c := range list {
			directory[c.ID] = c
		}
	}

	scores := make([]models.CandidateScore, 0, len(tallies))
	for id, tally := range tallies {
		c, ok := directory[id]
		if !ok {
			c = models.Candidate{ID: id}
		}
		scores = append(scores, NewCandidateScore(c, ScoreOf(tally)))
	}
	RankScores(scores)
	return scores, nil
}

// NewCandidateScore builds the display record for a candidate's score
func NewCandidateScore(c models.Candidate, score float64) models.CandidateScore {
	return models.CandidateScore{
		CandidateID:     c.ID,
		CandidateName:   c.Name,
		Party:           c.Party,
		Score:           score,
		MatchPercentage: int(math.Round(score)),
	}
}

// RankScores sorts by score descending, ties broken by candidate id ascending
func RankScores(scores []models.CandidateScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].CandidateID < scores[j].CandidateID
	})
}

// StrongMatch reports whether any score reaches threshold (inclusive)
func StrongMatch(scores []models.CandidateScore, threshold float64) bool {
	for _, s := range scores {
		if s.Score >= threshold {
			return true
		}
	}
	return false
}

// HasStrongMatch reports whether any candidate's current score is at or above
// threshold. It does not check how many answers the user has given; callers
// gate on that themselves.
func (e *Engine) HasStrongMatch(ctx context.Context, userID string, threshold float64) (bool, error) {
	tallies, err := e.store.ListCandidateScores(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list candidate scores: %w: %w", ErrStoreUnavailable, err)
	}
	for _, t := range tallies {
		if ScoreOf(t) >= threshold {
			return true, nil
		}
	}
	return false, nil
}

// GetTopicScores computes a per-topic mean agreement for one candidate from a
// user's answers. An answer counts toward the candidate when it carries the
// candidate id or when its opinion (looked up in opinions) belongs to the
// candidate. Topics with no answers for the candidate are left out.
func GetTopicScores(candidateID int64, answers []models.ProfileAnswer, opinions map[int64]models.Opinion) map[string]float64 {
	tallies := make(map[string]*Tally)
	for _, a := range answers {
		owner := a.CandidateID
		topic := a.Topic
		if op, ok := opinions[a.QuestionID]; ok {
			if owner == 0 {
				owner = op.CandidateID
			}
			if topic == "" {
				topic = op.Topic
			}
		}
		if owner != candidateID {
			continue
		}
		t, ok := tallies[topic]
		if !ok {
			t = &Tally{}
			tallies[topic] = t
		}
		t.Accumulated += Contribution(a.Agree)
		t.Count++
	}

	out := make(map[string]float64, len(tallies))
	for topic, t := range tallies {
		out[topic] = ScoreOf(*t)
	}
	return out
}

// Recompute rebuilds every candidate and topic tally from the raw answer
// history and overwrites the stored rows. Answers whose opinion has no
// candidate are skipped.
func (e *Engine) Recompute(ctx context.Context, userID string, answers []models.ProfileAnswer) error {
	type topicKey struct {
		candidateID int64
		topicID     int64
	}
	candidates := make(map[int64]Tally)
	topics := make(map[topicKey]Tally)

	for _, a := range answers {
		if a.CandidateID == 0 {
			continue
		}
		contribution := Contribution(a.Agree)

		c := candidates[a.CandidateID]
		c.Accumulated += contribution
		c.Count++
		candidates[a.CandidateID] = c

		k := topicKey{a.CandidateID, a.TopicID}
		t := topics[k]
		t.Accumulated += contribution
		t.Count++
		topics[k] = t
	}

	for id, tally := range candidates {
		if err := e.store.UpsertCandidateScore(ctx, userID, id, tally); err != nil {
			return fmt.Errorf("overwrite candidate %d: %w: %w", id, ErrStoreUnavailable, err)
		}
	}
	for k, tally := range topics {
		if err := e.store.UpsertTopicScore(ctx, userID, k.candidateID, k.topicID, tally); err != nil {
			return fmt.Errorf("overwrite topic %d for candidate %d: %w: %w", k.topicID, k.candidateID, ErrStoreUnavailable, err)
		}
	}
	return nil
}
