package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"votematch/logger"
	"votematch/middlewares"
	"votematch/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/scores", middlewares.RequireUser(), hub.ScoresHandler(NewUpgrader(nil)))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/scores?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome["type"])
	return conn
}

func waitForClients(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount(userID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastReachesOnlyOwner(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := newTestServer(t, hub)

	other := "6fa459ea-ee8a-3ca4-894e-db77e160355e"
	mine := dial(t, srv, testUser)
	theirs := dial(t, srv, other)
	waitForClients(t, hub, testUser, 1)
	waitForClients(t, hub, other, 1)

	hub.Broadcast(models.ScoreEvent{
		Type:      "score_updated",
		UserID:    testUser,
		Scores:    []models.CandidateScore{{CandidateID: 1, Score: 100, MatchPercentage: 100}},
		Timestamp: time.Now(),
	})

	var got models.ScoreEvent
	require.NoError(t, mine.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, mine.ReadJSON(&got))
	assert.Equal(t, "score_updated", got.Type)
	require.Len(t, got.Scores, 1)
	assert.Equal(t, 100, got.Scores[0].MatchPercentage)

	require.NoError(t, theirs.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var none map[string]interface{}
	assert.Error(t, theirs.ReadJSON(&none))
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := newTestServer(t, hub)

	conn := dial(t, srv, testUser)
	waitForClients(t, hub, testUser, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	waitForClients(t, hub, testUser, 0)

	assert.NotPanics(t, func() {
		hub.Broadcast(models.ScoreEvent{Type: "score_updated", UserID: testUser})
	})
}

func TestScoresHandlerRequiresUser(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := newTestServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws/scores")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewUpgraderOrigins(t *testing.T) {
	up := NewUpgrader([]string{"http://localhost:5173"})
	req := httptest.NewRequest(http.MethodGet, "/ws/scores", nil)

	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, up.CheckOrigin(req))

	assert.True(t, NewUpgrader([]string{"*"}).CheckOrigin(req))
}
