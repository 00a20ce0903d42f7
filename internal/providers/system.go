package providers

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

const (
	maxDashboardConnections = 100
	writeWait               = 5 * time.Second

	// DashboardRecipient is the single recipient of system messages.
	DashboardRecipient = "dashboard"
)

// Hub pushes system notifications to every connected dashboard websocket.
type Hub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers conn. It returns false when the hub is full.
func (h *Hub) AddConnection(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxDashboardConnections {
		h.logger.Warnf("Max dashboard connections reached (%d)", maxDashboardConnections)
		return false
	}
	h.connections[conn] = true
	h.logger.Infof("Added dashboard connection (total: %d)", len(h.connections))
	return true
}

func (h *Hub) RemoveConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; ok {
		delete(h.connections, conn)
		h.logger.Infof("Removed dashboard connection (remaining: %d)", len(h.connections))
	}
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

func (h *Hub) Channel() models.Channel { return models.ChannelSystem }

// Recipients ignores contacts: system messages go to the dashboard.
func (h *Hub) Recipients([]string) []string {
	return []string{DashboardRecipient}
}

// Send writes msg to every connection. Broken connections are dropped; no
// connected dashboard is not a failure.
func (h *Hub) Send(ctx context.Context, msg models.Message) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Errorf("Failed to push dashboard message: %v", err)
			delete(h.connections, conn)
			_ = conn.Close()
		}
	}
	return ctx.Err()
}
