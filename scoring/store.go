package scoring

import (
	"context"

	"votematch/models"
)

// Tally is the payload of one score row: the running sum of per-answer
// contributions and the number of answers folded into it.
type Tally struct {
	Accumulated float64 `bson:"accumulated" json:"accumulated"`
	Count       int     `bson:"count" json:"count"`
}

// Store persists candidate-level and topic-level tallies per user. Reads of a
// missing row return a zero Tally, never a not-found error.
type Store interface {
	GetCandidateScore(ctx context.Context, userID string, candidateID int64) (Tally, error)
	UpsertCandidateScore(ctx context.Context, userID string, candidateID int64, tally Tally) error
	GetTopicScore(ctx context.Context, userID string, candidateID, topicID int64) (Tally, error)
	UpsertTopicScore(ctx context.Context, userID string, candidateID, topicID int64, tally Tally) error
	ListCandidateScores(ctx context.Context, userID string) (map[int64]Tally, error)

	// IncrementCandidateScore adds contribution to the row and bumps its count
	// in a single conditional write, creating the row if needed. It returns the
	// row as it is after the write.
	IncrementCandidateScore(ctx context.Context, userID string, candidateID int64, contribution float64) (Tally, error)
	IncrementTopicScore(ctx context.Context, userID string, candidateID, topicID int64, contribution float64) (Tally, error)
}

// CandidateDirectory resolves candidate ids to display data
type CandidateDirectory interface {
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
}
