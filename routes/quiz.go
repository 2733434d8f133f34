package routes

import (
	"net/http"

	"votematch/controllers"
	"votematch/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupQuizRoutes registers the quiz API. scoresSocket serves /ws/scores.
func SetupQuizRoutes(router *gin.Engine, quiz *controllers.QuizController, scoresSocket gin.HandlerFunc) {
	router.POST("/users", quiz.CreateUser)
	router.GET("/topics", quiz.ListTopics)

	session := router.Group("/quiz")
	session.Use(middlewares.RequireUser())
	{
		session.GET("/next", quiz.NextQuestion)
		session.POST("/answers", quiz.SubmitAnswer)
		session.GET("/profile", quiz.GetProfile)
		session.GET("/scores", quiz.GetCandidateScores)
		session.GET("/scores/:candidateId/topics", quiz.GetTopicScores)
		session.POST("/scores/recompute", quiz.RecomputeScores)
		session.GET("/strong-match", quiz.CheckStrongMatch)
		session.GET("/summary", quiz.GetSummary)
	}

	if scoresSocket != nil {
		router.GET("/ws/scores", middlewares.RequireUser(), scoresSocket)
	}
}

// SetupSystemRoutes registers liveness and Prometheus endpoints
func SetupSystemRoutes(router *gin.Engine, gatherer prometheus.Gatherer) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
