package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"votematch/logger"
	"votematch/metrics"
	"votematch/models"
	"votematch/repository"
	"votematch/scoring"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Repository is the quiz data the service reads and appends to
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetOpinion(ctx context.Context, id int64) (*models.Opinion, error)
	ListOpinions(ctx context.Context) ([]models.Opinion, error)
	CountOpinions(ctx context.Context) (int64, error)
	ListTopics(ctx context.Context) ([]models.Topic, error)
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
	SaveCatalog(ctx context.Context, catalog models.Catalog) error
	InsertAnswer(ctx context.Context, answer *models.Answer) error
	ListAnswers(ctx context.Context, userID string) ([]models.Answer, error)
}

// Broadcaster pushes score events to a user's live connections
type Broadcaster interface {
	Broadcast(event models.ScoreEvent)
}

// Limiter decides whether a user may submit another answer
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// Score event types
const (
	EventScoreUpdated = "score_updated"
	EventStrongMatch  = "strong_match"
)

// QuizConfig holds the strong-match rules
type QuizConfig struct {
	StrongMatchThreshold float64
	MinAnswersForMatch   int
}

// QuizService runs the question/answer loop and exposes score reads
type QuizService struct {
	repo        Repository
	engine      *scoring.Engine
	limiter     Limiter
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	log         *logger.Logger
	cfg         QuizConfig
	now         func() time.Time
}

// QuizDeps lists the collaborators of a QuizService. Limiter, Broadcaster and
// Metrics are optional.
type QuizDeps struct {
	Repo        Repository
	Engine      *scoring.Engine
	Limiter     Limiter
	Broadcaster Broadcaster
	Metrics     *metrics.Metrics
	Log         *logger.Logger
}

func NewQuizService(deps QuizDeps, cfg QuizConfig) *QuizService {
	if cfg.StrongMatchThreshold <= 0 {
		cfg.StrongMatchThreshold = 60
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &QuizService{
		repo:        deps.Repo,
		engine:      deps.Engine,
		limiter:     deps.Limiter,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		log:         log.With("service", "QuizService"),
		cfg:         cfg,
		now:         time.Now,
	}
}

// CreateUser starts an anonymous session. Every selected topic must exist.
func (s *QuizService) CreateUser(ctx context.Context, selectedTopics []string) (*models.User, error) {
	topics, err := s.repo.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	known := make(map[string]string, len(topics))
	for _, t := range topics {
		known[strings.ToLower(t.Name)] = t.Name
	}

	selected := make([]string, 0, len(selectedTopics))
	seen := make(map[string]bool, len(selectedTopics))
	for _, name := range selectedTopics {
		canonical, ok := known[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownTopic)
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		selected = append(selected, canonical)
	}

	user := &models.User{
		ID:             uuid.NewString(),
		SelectedTopics: selected,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user created", "user_id", user.ID, "topics", len(selected))
	return user, nil
}

func (s *QuizService) ListTopics(ctx context.Context) ([]models.Topic, error) {
	topics, err := s.repo.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// NextQuestion returns the lowest-id opinion the user has not answered yet,
// restricted to the user's selected topics when there are any.
func (s *QuizService) NextQuestion(ctx context.Context, userID string) (*models.Question, error) {
	var (
		user     *models.User
		answers  []models.Answer
		opinions []models.Opinion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { user, err = s.getUser(gctx, userID); return err })
	g.Go(func() (err error) { answers, err = s.repo.ListAnswers(gctx, userID); return err })
	g.Go(func() (err error) { opinions, err = s.repo.ListOpinions(gctx); return err })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	answered := make(map[int64]bool, len(answers))
	for _, a := range answers {
		answered[a.OpinionID] = true
	}
	pool := filterByTopics(opinions, user.SelectedTopics)

	done := 0
	var next *models.Opinion
	for i := range pool {
		if answered[pool[i].ID] {
			done++
			continue
		}
		if next == nil {
			next = &pool[i]
		}
	}
	if next == nil {
		return nil, ErrQuizComplete
	}
	return &models.Question{
		ID:        next.ID,
		Topic:     next.Topic,
		Statement: next.Text,
		Index:     done,
		Total:     len(pool),
	}, nil
}

func filterByTopics(opinions []models.Opinion, topics []string) []models.Opinion {
	if len(topics) == 0 {
		return opinions
	}
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[strings.ToLower(t)] = true
	}
	out := make([]models.Opinion, 0, len(opinions))
	for _, op := range opinions {
		if wanted[strings.ToLower(op.Topic)] {
			out = append(out, op)
		}
	}
	return out
}

// SubmitAnswer records an answer and folds it into the user's scores. The
// answer is durable once InsertAnswer succeeds; a failed score update after
// that point is logged and reported through ScoresUpdated, not returned.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID string, opinionID int64, agree bool) (*models.AnswerResult, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			// A broken limiter must not block answering
			s.log.Warn("rate limiter unavailable", "user_id", userID, "error", err)
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}

	opinion, err := s.repo.GetOpinion(ctx, opinionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("opinion %d: %w", opinionID, ErrOpinionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opinion: %w", err)
	}

	answer := models.Answer{
		UserID:    userID,
		OpinionID: opinionID,
		Choice:    agree,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertAnswer(ctx, &answer); err != nil {
		if errors.Is(err, repository.ErrDuplicateAnswer) {
			return nil, fmt.Errorf("opinion %d: %w", opinionID, ErrAnswerExists)
		}
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	s.metrics.AnswerRecorded()

	result := &models.AnswerResult{Recorded: true}

	start := time.Now()
	_, err = s.engine.UpdateScoresFromAnswer(ctx, userID, models.NewProfileAnswer(answer, *opinion))
	switch {
	case errors.Is(err, scoring.ErrUnknownCandidate):
		s.metrics.ScoreUpdate(metrics.StatusSkipped, time.Since(start))
		s.log.Warn("answer has no candidate, scores unchanged", "user_id", userID, "opinion_id", opinionID)
		return result, nil
	case err != nil:
		s.metrics.ScoreUpdate(metrics.StatusFailed, time.Since(start))
		s.log.Error("score update failed", "user_id", userID, "opinion_id", opinionID, "error", err)
		return result, nil
	}
	s.metrics.ScoreUpdate(metrics.StatusSuccess, time.Since(start))
	result.ScoresUpdated = true

	scores, err := s.engine.GetCandidateScores(ctx, userID, false)
	if err != nil {
		s.log.Warn("failed to read scores after update", "user_id", userID, "error", err)
		return result, nil
	}
	result.Scores = scores
	s.publish(EventScoreUpdated, userID, scores)

	status, err := s.strongMatchStatus(ctx, userID, s.cfg.StrongMatchThreshold, scores)
	if err != nil {
		s.log.Warn("failed to evaluate strong match", "user_id", userID, "error", err)
		return result, nil
	}
	if status.Reached {
		result.StrongMatch = true
		s.metrics.StrongMatch()
		s.publish(EventStrongMatch, userID, scores)
	}
	return result, nil
}

func (s *QuizService) publish(eventType, userID string, scores []models.CandidateScore) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(models.ScoreEvent{
		Type:      eventType,
		UserID:    userID,
		Scores:    scores,
		Timestamp: s.now().UTC(),
	})
}

// GetProfile assembles the user's profile from the stored user, answers and
// opinions.
func (s *QuizService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		user     *models.User
		answers  []models.Answer
		opinions []models.Opinion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { user, err = s.getUser(gctx, userID); return err })
	g.Go(func() (err error) { answers, err = s.repo.ListAnswers(gctx, userID); return err })
	g.Go(func() (err error) { opinions, err = s.repo.ListOpinions(gctx); return err })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Opinion, len(opinions))
	for _, op := range opinions {
		byID[op.ID] = op
	}

	profile := &models.UserProfile{
		UserID:               user.ID,
		SelectedTopics:       user.SelectedTopics,
		Answers:              make([]models.ProfileAnswer, 0, len(answers)),
		CurrentQuestionIndex: len(answers),
	}
	for _, a := range answers {
		op, ok := byID[a.OpinionID]
		if !ok {
			op = models.Opinion{ID: a.OpinionID}
		}
		profile.Answers = append(profile.Answers, models.NewProfileAnswer(a, op))
	}
	return profile, nil
}

func (s *QuizService) GetCandidateScores(ctx context.Context, userID string, normalized bool) ([]models.CandidateScore, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.engine.GetCandidateScores(ctx, userID, normalized)
}

// GetTopicScores breaks one candidate's match down by topic
func (s *QuizService) GetTopicScores(ctx context.Context, userID string, candidateID int64) (map[string]float64, error) {
	candidates, err := s.repo.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	found := false
	for _, c := range candidates {
		if c.ID == candidateID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("candidate %d: %w", candidateID, ErrCandidateNotFound)
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return scoring.GetTopicScores(candidateID, profile.Answers, nil), nil
}

func (s *QuizService) GetPreferencesSummary(ctx context.Context, userID string) (string, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	return scoring.GetUserPreferencesSummary(*profile), nil
}

// CheckStrongMatch reports whether the user has answered enough questions to
// be eligible and whether any candidate reaches threshold. A threshold of zero
// or less uses the configured default.
func (s *QuizService) CheckStrongMatch(ctx context.Context, userID string, threshold float64) (*models.StrongMatchStatus, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.cfg.StrongMatchThreshold
	}
	scores, err := s.engine.GetCandidateScores(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return s.strongMatchStatus(ctx, userID, threshold, scores)
}

func (s *QuizService) strongMatchStatus(ctx context.Context, userID string, threshold float64, scores []models.CandidateScore) (*models.StrongMatchStatus, error) {
	answers, err := s.repo.ListAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	status := &models.StrongMatchStatus{
		Answers:   len(answers),
		Threshold: threshold,
		Eligible:  len(answers) >= s.cfg.MinAnswersForMatch,
	}
	status.Reached = status.Eligible && scoring.StrongMatch(scores, threshold)
	return status, nil
}

// RecomputeScores rebuilds the user's tallies from their answers and returns
// the resulting scores.
func (s *QuizService) RecomputeScores(ctx context.Context, userID string) ([]models.CandidateScore, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Recompute(ctx, userID, profile.Answers); err != nil {
		return nil, err
	}
	s.log.Info("scores recomputed", "user_id", userID, "answers", len(profile.Answers))
	return s.engine.GetCandidateScores(ctx, userID, false)
}

func (s *QuizService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}
