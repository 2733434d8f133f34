package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"votematch/logger"
	"votematch/middlewares"
	"votematch/services"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 5 * time.Second

// CreateUserRequest starts an anonymous quiz session
type CreateUserRequest struct {
	SelectedTopics []string `json:"selected_topics"`
}

// SubmitAnswerRequest is one agree/disagree response. Agree is a pointer so a
// missing field is rejected instead of read as "disagree".
type SubmitAnswerRequest struct {
	OpinionID int64 `json:"opinion_id" binding:"required"`
	Agree     *bool `json:"agree" binding:"required"`
}

// QuizController exposes QuizService over HTTP
type QuizController struct {
	svc *services.QuizService
	log *logger.Logger
}

func NewQuizController(svc *services.QuizService, log *logger.Logger) *QuizController {
	return &QuizController{svc: svc, log: log}
}

func (qc *QuizController) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := qc.svc.CreateUser(ctx, req.SelectedTopics)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "selected_topics": user.SelectedTopics})
}

func (qc *QuizController) ListTopics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	topics, err := qc.svc.ListTopics(ctx)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

func (qc *QuizController) NextQuestion(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	question, err := qc.svc.NextQuestion(ctx, middlewares.UserID(c))
	if errors.Is(err, services.ErrQuizComplete) {
		c.JSON(http.StatusOK, gin.H{"done": true})
		return
	}
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"done": false, "question": question})
}

func (qc *QuizController) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := qc.svc.SubmitAnswer(ctx, middlewares.UserID(c), req.OpinionID, *req.Agree)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (qc *QuizController) GetProfile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	profile, err := qc.svc.GetProfile(ctx, middlewares.UserID(c))
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (qc *QuizController) GetCandidateScores(c *gin.Context) {
	normalized := true
	if raw := c.Query("normalized"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid normalized flag"})
			return
		}
		normalized = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	scores, err := qc.svc.GetCandidateScores(ctx, middlewares.UserID(c), normalized)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (qc *QuizController) GetTopicScores(c *gin.Context) {
	candidateID, err := strconv.ParseInt(c.Param("candidateId"), 10, 64)
	if err != nil || candidateID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid candidate id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	topics, err := qc.svc.GetTopicScores(ctx, middlewares.UserID(c), candidateID)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate_id": candidateID, "topics": topics})
}

func (qc *QuizController) CheckStrongMatch(c *gin.Context) {
	var threshold float64
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Threshold must be between 0 and 100"})
			return
		}
		threshold = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	status, err := qc.svc.CheckStrongMatch(ctx, middlewares.UserID(c), threshold)
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (qc *QuizController) GetSummary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	summary, err := qc.svc.GetPreferencesSummary(ctx, middlewares.UserID(c))
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (qc *QuizController) RecomputeScores(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	scores, err := qc.svc.RecomputeScores(ctx, middlewares.UserID(c))
	if err != nil {
		qc.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (qc *QuizController) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrOpinionNotFound),
		errors.Is(err, services.ErrCandidateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAnswerExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownTopic):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		qc.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
