package repository

import (
	"context"
	"testing"
	"time"

	"votematch/models"
	"votematch/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get user not found", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "votematch.users", mtest.FirstBatch))

		_, err := repo.GetUser(ctx, "missing")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get opinion", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "votematch.opinions", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: int64(10)},
			{Key: "text", Value: "Cut income tax"},
			{Key: "topicId", Value: int64(1)},
			{Key: "topic", Value: "economy"},
			{Key: "candidateId", Value: int64(2)},
		}))

		op, err := repo.GetOpinion(ctx, 10)
		require.NoError(mt, err)
		assert.Equal(mt, models.Opinion{ID: 10, Text: "Cut income tax", TopicID: 1, Topic: "economy", CandidateID: 2}, *op)
	})

	mt.Run("missing score row reads as zero", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "votematch.candidate_scores", mtest.FirstBatch))

		tally, err := repo.GetCandidateScore(ctx, "u1", 1)
		require.NoError(mt, err)
		assert.Equal(mt, scoring.Tally{}, tally)
	})

	mt.Run("increment returns row after write", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "candidateId", Value: int64(1)},
				{Key: "accumulated", Value: 200.0},
				{Key: "count", Value: 3},
				{Key: "updatedAt", Value: time.Now()},
			}},
		})

		tally, err := repo.IncrementCandidateScore(ctx, "u1", 1, 100)
		require.NoError(mt, err)
		assert.Equal(mt, scoring.Tally{Accumulated: 200, Count: 3}, tally)
	})

	mt.Run("increment failure is wrapped", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
			Name:    "InterruptedAtShutdown",
		}))

		_, err := repo.IncrementTopicScore(ctx, "u1", 1, 2, 100)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "topic_scores")
	})

	mt.Run("duplicate answer", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.InsertAnswer(ctx, &models.Answer{UserID: "u1", OpinionID: 10, Choice: true, CreatedAt: time.Now()})
		assert.ErrorIs(mt, err, ErrDuplicateAnswer)
	})

	mt.Run("list candidate scores", func(mt *mtest.T) {
		repo := NewMongoRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "votematch.candidate_scores", mtest.FirstBatch,
			bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "candidateId", Value: int64(1)},
				{Key: "accumulated", Value: 100.0},
				{Key: "count", Value: 2},
			},
			bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "candidateId", Value: int64(2)},
				{Key: "accumulated", Value: 0.0},
				{Key: "count", Value: 1},
			},
		))

		scores, err := repo.ListCandidateScores(ctx, "u1")
		require.NoError(mt, err)
		assert.Equal(mt, map[int64]scoring.Tally{
			1: {Accumulated: 100, Count: 2},
			2: {Accumulated: 0, Count: 1},
		}, scores)
	})
}
