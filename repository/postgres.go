package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"votematch/models"
	"votematch/scoring"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Row types for the relational schema. Store rows stay at this boundary and are
// converted to models before leaving the package.

type UserRow struct {
	ID             string         `gorm:"column:id;primaryKey"`
	SelectedTopics datatypes.JSON `gorm:"column:selected_topics"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

func (UserRow) TableName() string { return "users" }

type TopicRow struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name string `gorm:"column:name;not null"`
}

func (TopicRow) TableName() string { return "topics" }

type CandidateRow struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name  string `gorm:"column:name;not null"`
	Party string `gorm:"column:party"`
}

func (CandidateRow) TableName() string { return "candidates" }

type OpinionRow struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement:false"`
	Text        string   `gorm:"column:text;not null"`
	TopicID     int64    `gorm:"column:topic_id;index"`
	CandidateID int64    `gorm:"column:candidate_id;index"`
	Topic       TopicRow `gorm:"foreignKey:TopicID"`
}

func (OpinionRow) TableName() string { return "opinions" }

type AnswerRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	OpinionID int64     `gorm:"column:opinion_id;primaryKey;autoIncrement:false"`
	Choice    bool      `gorm:"column:choice"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (AnswerRow) TableName() string { return "answers" }

type CandidateScoreRow struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	CandidateID int64     `gorm:"column:candidate_id;primaryKey;autoIncrement:false"`
	Accumulated float64   `gorm:"column:accumulated;not null;default:0"`
	Count       int       `gorm:"column:count;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (CandidateScoreRow) TableName() string { return "candidate_scores" }

type TopicScoreRow struct {
	UserID      string    `gorm:"column:user_id;primaryKey"`
	CandidateID int64     `gorm:"column:candidate_id;primaryKey;autoIncrement:false"`
	TopicID     int64     `gorm:"column:topic_id;primaryKey;autoIncrement:false"`
	Accumulated float64   `gorm:"column:accumulated;not null;default:0"`
	Count       int       `gorm:"column:count;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (TopicScoreRow) TableName() string { return "topic_scores" }

// AllRows lists the tables the Postgres repository needs migrated
func AllRows() []interface{} {
	return []interface{}{
		&UserRow{},
		&TopicRow{},
		&CandidateRow{},
		&OpinionRow{},
		&AnswerRow{},
		&CandidateScoreRow{},
		&TopicScoreRow{},
	}
}

// PostgresRepository stores quiz data and score rows in Postgres through gorm
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	topics, err := json.Marshal(user.SelectedTopics)
	if err != nil {
		return fmt.Errorf("failed to encode selected topics: %w", err)
	}
	row := UserRow{ID: user.ID, SelectedTopics: datatypes.JSON(topics), CreatedAt: user.CreatedAt}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var row UserRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	user := &models.User{ID: row.ID, CreatedAt: row.CreatedAt}
	if len(row.SelectedTopics) > 0 {
		if err := json.Unmarshal(row.SelectedTopics, &user.SelectedTopics); err != nil {
			return nil, fmt.Errorf("failed to decode selected topics: %w", err)
		}
	}
	return user, nil
}

func (r *PostgresRepository) GetOpinion(ctx context.Context, id int64) (*models.Opinion, error) {
	var row OpinionRow
	err := r.db.WithContext(ctx).Preload("Topic").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("opinion %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opinion: %w", err)
	}
	op := row.toModel()
	return &op, nil
}

func (r *PostgresRepository) ListOpinions(ctx context.Context) ([]models.Opinion, error) {
	var rows []OpinionRow
	if err := r.db.WithContext(ctx).Preload("Topic").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list opinions: %w", err)
	}
	out := make([]models.Opinion, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (row OpinionRow) toModel() models.Opinion {
	return models.Opinion{
		ID:          row.ID,
		Text:        row.Text,
		TopicID:     row.TopicID,
		Topic:       row.Topic.Name,
		CandidateID: row.CandidateID,
	}
}

func (r *PostgresRepository) CountOpinions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&OpinionRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count opinions: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListTopics(ctx context.Context) ([]models.Topic, error) {
	var rows []TopicRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	out := make([]models.Topic, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Topic{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

func (r *PostgresRepository) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	var rows []CandidateRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	out := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Candidate{ID: row.ID, Name: row.Name, Party: row.Party})
	}
	return out, nil
}

func (r *PostgresRepository) SaveCatalog(ctx context.Context, catalog models.Catalog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}
		if len(catalog.Topics) > 0 {
			rows := make([]TopicRow, 0, len(catalog.Topics))
			for _, t := range catalog.Topics {
				rows = append(rows, TopicRow{ID: t.ID, Name: t.Name})
			}
			if err := tx.Clauses(upsert).Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save topics: %w", err)
			}
		}
		if len(catalog.Candidates) > 0 {
			rows := make([]CandidateRow, 0, len(catalog.Candidates))
			for _, c := range catalog.Candidates {
				rows = append(rows, CandidateRow{ID: c.ID, Name: c.Name, Party: c.Party})
			}
			if err := tx.Clauses(upsert).Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save candidates: %w", err)
			}
		}
		if len(catalog.Opinions) > 0 {
			rows := make([]OpinionRow, 0, len(catalog.Opinions))
			for _, op := range catalog.Opinions {
				rows = append(rows, OpinionRow{ID: op.ID, Text: op.Text, TopicID: op.TopicID, CandidateID: op.CandidateID})
			}
			if err := tx.Omit("Topic").Clauses(upsert).Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to save opinions: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) InsertAnswer(ctx context.Context, answer *models.Answer) error {
	row := AnswerRow{
		UserID:    answer.UserID,
		OpinionID: answer.OpinionID,
		Choice:    answer.Choice,
		CreatedAt: answer.CreatedAt,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert answer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s opinion %d: %w", answer.UserID, answer.OpinionID, ErrDuplicateAnswer)
	}
	return nil
}

func (r *PostgresRepository) ListAnswers(ctx context.Context, userID string) ([]models.Answer, error) {
	var rows []AnswerRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, opinion_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	out := make([]models.Answer, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Answer{
			UserID:    row.UserID,
			OpinionID: row.OpinionID,
			Choice:    row.Choice,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (r *PostgresRepository) GetCandidateScore(ctx context.Context, userID string, candidateID int64) (scoring.Tally, error) {
	var row CandidateScoreRow
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND candidate_id = ?", userID, candidateID).
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return scoring.Tally{}, fmt.Errorf("failed to fetch candidate score: %w", res.Error)
	}
	return scoring.Tally{Accumulated: row.Accumulated, Count: row.Count}, nil
}

func (r *PostgresRepository) UpsertCandidateScore(ctx context.Context, userID string, candidateID int64, tally scoring.Tally) error {
	row := CandidateScoreRow{
		UserID:      userID,
		CandidateID: candidateID,
		Accumulated: tally.Accumulated,
		Count:       tally.Count,
		UpdatedAt:   time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"accumulated", "count", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to overwrite candidate score: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementCandidateScore(ctx context.Context, userID string, candidateID int64, contribution float64) (scoring.Tally, error) {
	var out scoring.Tally
	res := r.db.WithContext(ctx).Raw(
		incrementSQL("candidate_scores", "user_id, candidate_id", "?, ?"),
		userID, candidateID, contribution, time.Now(),
	).Scan(&out)
	if res.Error != nil {
		return scoring.Tally{}, fmt.Errorf("failed to increment candidate score: %w", res.Error)
	}
	return out, nil
}

func (r *PostgresRepository) GetTopicScore(ctx context.Context, userID string, candidateID, topicID int64) (scoring.Tally, error) {
	var row TopicScoreRow
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND candidate_id = ? AND topic_id = ?", userID, candidateID, topicID).
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return scoring.Tally{}, fmt.Errorf("failed to fetch topic score: %w", res.Error)
	}
	return scoring.Tally{Accumulated: row.Accumulated, Count: row.Count}, nil
}

func (r *PostgresRepository) UpsertTopicScore(ctx context.Context, userID string, candidateID, topicID int64, tally scoring.Tally) error {
	row := TopicScoreRow{
		UserID:      userID,
		CandidateID: candidateID,
		TopicID:     topicID,
		Accumulated: tally.Accumulated,
		Count:       tally.Count,
		UpdatedAt:   time.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "candidate_id"}, {Name: "topic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"accumulated", "count", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to overwrite topic score: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementTopicScore(ctx context.Context, userID string, candidateID, topicID int64, contribution float64) (scoring.Tally, error) {
	var out scoring.Tally
	res := r.db.WithContext(ctx).Raw(
		incrementSQL("topic_scores", "user_id, candidate_id, topic_id", "?, ?, ?"),
		userID, candidateID, topicID, contribution, time.Now(),
	).Scan(&out)
	if res.Error != nil {
		return scoring.Tally{}, fmt.Errorf("failed to increment topic score: %w", res.Error)
	}
	return out, nil
}

func (r *PostgresRepository) ListCandidateScores(ctx context.Context, userID string) (map[int64]scoring.Tally, error) {
	var rows []CandidateScoreRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list candidate scores: %w", err)
	}
	out := make(map[int64]scoring.Tally, len(rows))
	for _, row := range rows {
		out[row.CandidateID] = scoring.Tally{Accumulated: row.Accumulated, Count: row.Count}
	}
	return out, nil
}

// incrementSQL builds the single-statement upsert that adds one answer to a
// score row. The key placeholders come first, then contribution, then time.
func incrementSQL(table, keyColumns, keyPlaceholders string) string {
	return strings.NewReplacer("{table}", table, "{keys}", keyColumns, "{vals}", keyPlaceholders).Replace(`
INSERT INTO {table} ({keys}, accumulated, count, updated_at)
VALUES ({vals}, ?, 1, ?)
ON CONFLICT ({keys}) DO UPDATE SET
  accumulated = {table}.accumulated + EXCLUDED.accumulated,
  count = {table}.count + 1,
  updated_at = EXCLUDED.updated_at
RETURNING accumulated, count
`)
}
