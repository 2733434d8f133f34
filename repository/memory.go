package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"votematch/models"
	"votematch/scoring"
)

type answerKey struct {
	userID    string
	opinionID int64
}

type topicScoreKey struct {
	userID      string
	candidateID int64
	topicID     int64
}

// MemoryRepository keeps everything in process memory. It is used by tests and
// by the "memory" driver for local runs.
type MemoryRepository struct {
	mu sync.RWMutex

	users      map[string]models.User
	topics     map[int64]models.Topic
	candidates map[int64]models.Candidate
	opinions   map[int64]models.Opinion
	answers    map[string][]models.Answer
	answered   map[answerKey]struct{}

	candidateScores map[string]map[int64]scoring.Tally
	topicScores     map[topicScoreKey]scoring.Tally
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:           make(map[string]models.User),
		topics:          make(map[int64]models.Topic),
		candidates:      make(map[int64]models.Candidate),
		opinions:        make(map[int64]models.Opinion),
		answers:         make(map[string][]models.Answer),
		answered:        make(map[answerKey]struct{}),
		candidateScores: make(map[string]map[int64]scoring.Tally),
		topicScores:     make(map[topicScoreKey]scoring.Tally),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &user, nil
}

func (r *MemoryRepository) GetOpinion(_ context.Context, id int64) (*models.Opinion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.opinions[id]
	if !ok {
		return nil, fmt.Errorf("opinion %d: %w", id, ErrNotFound)
	}
	op.Topic = r.topics[op.TopicID].Name
	return &op, nil
}

func (r *MemoryRepository) ListOpinions(_ context.Context) ([]models.Opinion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Opinion, 0, len(r.opinions))
	for _, op := range r.opinions {
		op.Topic = r.topics[op.TopicID].Name
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CountOpinions(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.opinions)), nil
}

func (r *MemoryRepository) ListTopics(_ context.Context) ([]models.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) ListCandidates(_ context.Context) ([]models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) SaveCatalog(_ context.Context, catalog models.Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range catalog.Topics {
		r.topics[t.ID] = t
	}
	for _, c := range catalog.Candidates {
		r.candidates[c.ID] = c
	}
	for _, op := range catalog.Opinions {
		r.opinions[op.ID] = op
	}
	return nil
}

func (r *MemoryRepository) InsertAnswer(_ context.Context, answer *models.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := answerKey{answer.UserID, answer.OpinionID}
	if _, dup := r.answered[key]; dup {
		return fmt.Errorf("user %s opinion %d: %w", answer.UserID, answer.OpinionID, ErrDuplicateAnswer)
	}
	r.answered[key] = struct{}{}
	r.answers[answer.UserID] = append(r.answers[answer.UserID], *answer)
	return nil
}

func (r *MemoryRepository) ListAnswers(_ context.Context, userID string) ([]models.Answer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]models.Answer(nil), r.answers[userID]...)
	sortAnswers(out)
	return out, nil
}

func sortAnswers(answers []models.Answer) {
	sort.SliceStable(answers, func(i, j int) bool {
		if !answers[i].CreatedAt.Equal(answers[j].CreatedAt) {
			return answers[i].CreatedAt.Before(answers[j].CreatedAt)
		}
		return answers[i].OpinionID < answers[j].OpinionID
	})
}

func (r *MemoryRepository) GetCandidateScore(_ context.Context, userID string, candidateID int64) (scoring.Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.candidateScores[userID][candidateID], nil
}

func (r *MemoryRepository) UpsertCandidateScore(_ context.Context, userID string, candidateID int64, tally scoring.Tally) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidateRow(userID)[candidateID] = tally
	return nil
}

func (r *MemoryRepository) IncrementCandidateScore(_ context.Context, userID string, candidateID int64, contribution float64) (scoring.Tally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.candidateRow(userID)
	t := row[candidateID]
	t.Accumulated += contribution
	t.Count++
	row[candidateID] = t
	return t, nil
}

func (r *MemoryRepository) GetTopicScore(_ context.Context, userID string, candidateID, topicID int64) (scoring.Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.topicScores[topicScoreKey{userID, candidateID, topicID}], nil
}

func (r *MemoryRepository) UpsertTopicScore(_ context.Context, userID string, candidateID, topicID int64, tally scoring.Tally) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topicScores[topicScoreKey{userID, candidateID, topicID}] = tally
	return nil
}

func (r *MemoryRepository) IncrementTopicScore(_ context.Context, userID string, candidateID, topicID int64, contribution float64) (scoring.Tally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := topicScoreKey{userID, candidateID, topicID}
	t := r.topicScores[key]
	t.Accumulated += contribution
	t.Count++
	r.topicScores[key] = t
	return t, nil
}

func (r *MemoryRepository) ListCandidateScores(_ context.Context, userID string) (map[int64]scoring.Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]scoring.Tally, len(r.candidateScores[userID]))
	for id, t := range r.candidateScores[userID] {
		out[id] = t
	}
	return out, nil
}

// candidateRow must be called with the write lock held
func (r *MemoryRepository) candidateRow(userID string) map[int64]scoring.Tally {
	row, ok := r.candidateScores[userID]
	if !ok {
		row = make(map[int64]scoring.Tally)
		r.candidateScores[userID] = row
	}
	return row
}
