package websocket

import (
	"net/http"
	"time"

	"votematch/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// NewUpgrader accepts upgrades from the given origins, or from any origin when
// the list is empty or contains "*".
func NewUpgrader(allowOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = struct{}{}
	}
	_, wildcard := allowed["*"]
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if wildcard || len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ScoresHandler upgrades the request and streams the session user's score
// events until the client goes away. It must run behind RequireUser.
func (h *Hub) ScoresHandler(upgrader websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middlewares.UserID(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
			return
		}

		client := &ScoreClient{Conn: conn, UserID: userID}
		h.Register(client)
		defer h.Unregister(client)

		// Send welcome message
		welcome := map[string]interface{}{
			"type":      "connected",
			"userId":    userID,
			"timestamp": time.Now(),
		}
		if err := client.SafeWriteJSON(welcome); err != nil {
			return
		}

		// Keep connection alive until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Warn("score websocket error", "user_id", userID, "error", err)
				}
				return
			}
		}
	}
}
