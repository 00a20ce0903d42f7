package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stock-alert-service/internal/inventory"
	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/notification"
	"stock-alert-service/internal/providers"
	"stock-alert-service/internal/replenishment"
	"stock-alert-service/internal/services"
	"stock-alert-service/internal/thresholds"
)

// Deps are the components the API serves.
type Deps struct {
	Stock      *services.Service
	Catalog    *inventory.Catalog
	Thresholds *thresholds.Store
	Ledger     ledger.Ledger
	Advisor    *replenishment.Advisor
	Planner    *replenishment.Planner
	Deliveries notification.DeliveryLog
	Hub        *providers.Hub
}

type Handler struct {
	Deps
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHandler(deps Deps, logger *logging.Logger) *Handler {
	return &Handler{
		Deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidRange),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes it as the response. Internal errors are not
// echoed to the client.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", msg, err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	h.logger.Warnf("%s: %v", msg, err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Warnf("%s: %v", msg, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Dashboard upgrades to a websocket that receives system channel messages.
// The connection is read only to notice when the client goes away.
func (h *Handler) Dashboard(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade failed: %v", err)
		return
	}
	if !h.Hub.AddConnection(conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many dashboard connections"))
		_ = conn.Close()
		return
	}
	defer func() {
		h.Hub.RemoveConnection(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
