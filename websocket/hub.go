package websocket

import (
	"sync"

	"votematch/logger"
	"votematch/models"

	"github.com/gorilla/websocket"
)

// ScoreClient is one websocket connection subscribed to a user's score events
type ScoreClient struct {
	Conn    *websocket.Conn
	UserID  string
	writeMu sync.Mutex
}

// SafeWriteJSON safely writes JSON data to the client's WebSocket connection
func (sc *ScoreClient) SafeWriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// Hub fans score events out to the connections of the user they belong to
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*ScoreClient]struct{}
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*ScoreClient]struct{}),
		log:     log,
	}
}

// Register adds a client to its user's set
func (h *Hub) Register(client *ScoreClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.UserID]
	if !ok {
		set = make(map[*ScoreClient]struct{})
		h.clients[client.UserID] = set
	}
	set[client] = struct{}{}
	h.log.Debug("score client registered", "user_id", client.UserID, "connections", len(set))
}

// Unregister removes a client and closes its connection. Unregistering a
// client twice is harmless.
func (h *Hub) Unregister(client *ScoreClient) {
	h.mu.Lock()
	set, ok := h.clients[client.UserID]
	if ok {
		if _, present := set[client]; !present {
			ok = false
		}
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.mu.Unlock()

	if ok {
		client.Conn.Close()
		h.log.Debug("score client unregistered", "user_id", client.UserID)
	}
}

// Broadcast writes the event to every connection of event.UserID. Connections
// whose write fails are dropped.
func (h *Hub) Broadcast(event models.ScoreEvent) {
	h.mu.RLock()
	targets := make([]*ScoreClient, 0, len(h.clients[event.UserID]))
	for client := range h.clients[event.UserID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if err := client.SafeWriteJSON(event); err != nil {
			h.log.Warn("failed to push score event", "user_id", event.UserID, "type", event.Type, "error", err)
			h.Unregister(client)
		}
	}
}

// ClientCount returns the number of open connections for a user
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
