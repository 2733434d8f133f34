package middlewares

import (
	"time"

	"votematch/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request through the structured logger
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if userID := UserID(c); userID != "" {
			kv = append(kv, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		default:
			log.Info("request handled", kv...)
		}
	}
}
