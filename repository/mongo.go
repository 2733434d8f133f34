package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"votematch/models"
	"votematch/scoring"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection           = "users"
	topicsCollection          = "topics"
	candidatesCollection      = "candidates"
	opinionsCollection        = "opinions"
	answersCollection         = "answers"
	candidateScoresCollection = "candidate_scores"
	topicScoresCollection     = "topic_scores"
)

// MongoRepository stores quiz data and score rows in MongoDB
type MongoRepository struct {
	db *mongo.Database
}

type candidateScoreDoc struct {
	UserID      string    `bson:"userId"`
	CandidateID int64     `bson:"candidateId"`
	Accumulated float64   `bson:"accumulated"`
	Count       int       `bson:"count"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type topicScoreDoc struct {
	UserID      string    `bson:"userId"`
	CandidateID int64     `bson:"candidateId"`
	TopicID     int64     `bson:"topicId"`
	Accumulated float64   `bson:"accumulated"`
	Count       int       `bson:"count"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

// EnsureIndexes creates the unique indexes the repository relies on: one
// answer per (user, opinion) and one score row per key.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := map[string]bson.D{
		answersCollection:         {{Key: "userId", Value: 1}, {Key: "opinionId", Value: 1}},
		candidateScoresCollection: {{Key: "userId", Value: 1}, {Key: "candidateId", Value: 1}},
		topicScoresCollection:     {{Key: "userId", Value: 1}, {Key: "candidateId", Value: 1}, {Key: "topicId", Value: 1}},
	}
	for name, keys := range indexes {
		model := mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
		if _, err := r.db.Collection(name).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}
	return nil
}

func (r *MongoRepository) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := r.db.Collection(usersCollection).InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (r *MongoRepository) GetOpinion(ctx context.Context, id int64) (*models.Opinion, error) {
	var op models.Opinion
	err := r.db.Collection(opinionsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&op)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("opinion %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opinion: %w", err)
	}
	return &op, nil
}

func (r *MongoRepository) ListOpinions(ctx context.Context) ([]models.Opinion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetProjection(bson.M{"embedding": 0})
	var out []models.Opinion
	if err := r.findAll(ctx, opinionsCollection, bson.M{}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) CountOpinions(ctx context.Context) (int64, error) {
	n, err := r.db.Collection(opinionsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count opinions: %w", err)
	}
	return n, nil
}

func (r *MongoRepository) ListTopics(ctx context.Context) ([]models.Topic, error) {
	var out []models.Topic
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := r.findAll(ctx, topicsCollection, bson.M{}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	var out []models.Candidate
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if err := r.findAll(ctx, candidatesCollection, bson.M{}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCatalog upserts reference data by id. Opinions are stored with their
// topic name so reads need no join.
func (r *MongoRepository) SaveCatalog(ctx context.Context, catalog models.Catalog) error {
	topicNames := make(map[int64]string, len(catalog.Topics))
	topics := make([]mongo.WriteModel, 0, len(catalog.Topics))
	for _, t := range catalog.Topics {
		topicNames[t.ID] = t.Name
		topics = append(topics, replaceByID(t.ID, t))
	}
	candidates := make([]mongo.WriteModel, 0, len(catalog.Candidates))
	for _, c := range catalog.Candidates {
		candidates = append(candidates, replaceByID(c.ID, c))
	}
	opinions := make([]mongo.WriteModel, 0, len(catalog.Opinions))
	for _, op := range catalog.Opinions {
		if op.Topic == "" {
			op.Topic = topicNames[op.TopicID]
		}
		opinions = append(opinions, replaceByID(op.ID, op))
	}

	for name, writes := range map[string][]mongo.WriteModel{
		topicsCollection:     topics,
		candidatesCollection: candidates,
		opinionsCollection:   opinions,
	} {
		if len(writes) == 0 {
			continue
		}
		if _, err := r.db.Collection(name).BulkWrite(ctx, writes); err != nil {
			return fmt.Errorf("failed to save %s: %w", name, err)
		}
	}
	return nil
}

func replaceByID(id int64, doc interface{}) mongo.WriteModel {
	return mongo.NewReplaceOneModel().SetFilter(bson.M{"_id": id}).SetReplacement(doc).SetUpsert(true)
}

func (r *MongoRepository) InsertAnswer(ctx context.Context, answer *models.Answer) error {
	_, err := r.db.Collection(answersCollection).InsertOne(ctx, answer)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s opinion %d: %w", answer.UserID, answer.OpinionID, ErrDuplicateAnswer)
	}
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	return nil
}

func (r *MongoRepository) ListAnswers(ctx context.Context, userID string) ([]models.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "opinionId", Value: 1}})
	var out []models.Answer
	if err := r.findAll(ctx, answersCollection, bson.M{"userId": userID}, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetCandidateScore(ctx context.Context, userID string, candidateID int64) (scoring.Tally, error) {
	var doc candidateScoreDoc
	filter := bson.M{"userId": userID, "candidateId": candidateID}
	err := r.db.Collection(candidateScoresCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scoring.Tally{}, nil
	}
	if err != nil {
		return scoring.Tally{}, fmt.Errorf("failed to fetch candidate score: %w", err)
	}
	return scoring.Tally{Accumulated: doc.Accumulated, Count: doc.Count}, nil
}

func (r *MongoRepository) UpsertCandidateScore(ctx context.Context, userID string, candidateID int64, tally scoring.Tally) error {
	filter := bson.M{"userId": userID, "candidateId": candidateID}
	return r.overwrite(ctx, candidateScoresCollection, filter, tally)
}

func (r *MongoRepository) IncrementCandidateScore(ctx context.Context, userID string, candidateID int64, contribution float64) (scoring.Tally, error) {
	var doc candidateScoreDoc
	filter := bson.M{"userId": userID, "candidateId": candidateID}
	if err := r.increment(ctx, candidateScoresCollection, filter, contribution, &doc); err != nil {
		return scoring.Tally{}, err
	}
	return scoring.Tally{Accumulated: doc.Accumulated, Count: doc.Count}, nil
}

func (r *MongoRepository) GetTopicScore(ctx context.Context, userID string, candidateID, topicID int64) (scoring.Tally, error) {
	var doc topicScoreDoc
	filter := bson.M{"userId": userID, "candidateId": candidateID, "topicId": topicID}
	err := r.db.Collection(topicScoresCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return scoring.Tally{}, nil
	}
	if err != nil {
		return scoring.Tally{}, fmt.Errorf("failed to fetch topic score: %w", err)
	}
	return scoring.Tally{Accumulated: doc.Accumulated, Count: doc.Count}, nil
}

func (r *MongoRepository) UpsertTopicScore(ctx context.Context, userID string, candidateID, topicID int64, tally scoring.Tally) error {
	filter := bson.M{"userId": userID, "candidateId": candidateID, "topicId": topicID}
	return r.overwrite(ctx, topicScoresCollection, filter, tally)
}

func (r *MongoRepository) IncrementTopicScore(ctx context.Context, userID string, candidateID, topicID int64, contribution float64) (scoring.Tally, error) {
	var doc topicScoreDoc
	filter := bson.M{"userId": userID, "candidateId": candidateID, "topicId": topicID}
	if err := r.increment(ctx, topicScoresCollection, filter, contribution, &doc); err != nil {
		return scoring.Tally{}, err
	}
	return scoring.Tally{Accumulated: doc.Accumulated, Count: doc.Count}, nil
}

func (r *MongoRepository) ListCandidateScores(ctx context.Context, userID string) (map[int64]scoring.Tally, error) {
	var docs []candidateScoreDoc
	if err := r.findAll(ctx, candidateScoresCollection, bson.M{"userId": userID}, options.Find(), &docs); err != nil {
		return nil, err
	}
	out := make(map[int64]scoring.Tally, len(docs))
	for _, d := range docs {
		out[d.CandidateID] = scoring.Tally{Accumulated: d.Accumulated, Count: d.Count}
	}
	return out, nil
}

// increment applies $inc as a single upserting findAndModify so concurrent
// answers for the same row cannot overwrite each other.
func (r *MongoRepository) increment(ctx context.Context, collection string, filter bson.M, contribution float64, out interface{}) error {
	update := bson.M{
		"$inc": bson.M{"accumulated": contribution, "count": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := r.db.Collection(collection).FindOneAndUpdate(ctx, filter, update, opts).Decode(out); err != nil {
		return fmt.Errorf("failed to increment %s: %w", collection, err)
	}
	return nil
}

func (r *MongoRepository) overwrite(ctx context.Context, collection string, filter bson.M, tally scoring.Tally) error {
	update := bson.M{"$set": bson.M{
		"accumulated": tally.Accumulated,
		"count":       tally.Count,
		"updatedAt":   time.Now(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.db.Collection(collection).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to overwrite %s: %w", collection, err)
	}
	return nil
}

func (r *MongoRepository) findAll(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions, out interface{}) error {
	cursor, err := r.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}
