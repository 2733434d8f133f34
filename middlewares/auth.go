package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserIDKey is the gin context key holding the session user id
const UserIDKey = "userID"

// RequireUser reads the anonymous session id from the X-User-ID header, or the
// userId query parameter when no header is present (browsers cannot set
// headers on websocket upgrades), and stores it in the context.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = c.Query("userId")
		}
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing X-User-ID header"})
			c.Abort()
			return
		}

		parsed, err := uuid.Parse(userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, parsed.String())
		c.Next()
	}
}

// UserID returns the id stored by RequireUser
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
