package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/domain/models"
	"github.com/mbodji/lendscan/internal/service/eventctx"
	"github.com/mbodji/lendscan/internal/service/tracking"
)

// EventLister reads the event catalog for the selection UI.
type EventLister interface {
	ListEvents(ctx context.Context) ([]models.Event, error)
}

// EventHandler serves event selection and the reconciled list views.
type EventHandler struct {
	events   *eventctx.Manager
	store    EventLister
	tracking *tracking.Service
	logger   *zap.Logger
}

// NewEventHandler constructs the HTTP handler adapter.
func NewEventHandler(events *eventctx.Manager, store EventLister, trackingSvc *tracking.Service, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{events: events, store: store, tracking: trackingSvc, logger: logger}
}

type selectRequest struct {
	EventID string `json:"eventId" binding:"required"`
}

// List returns all events.
func (h *EventHandler) List(c *gin.Context) {
	events, err := h.store.ListEvents(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Select switches the active event.
func (h *EventHandler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event identifier"})
		return
	}

	h.events.Select(c.Request.Context(), eventID)
	c.Status(http.StatusNoContent)
}

// Lists returns the waiting/loaned partition and the history aggregate for
// the active event.
func (h *EventHandler) Lists(c *gin.Context) {
	if _, ok := h.events.Selected(); !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "no event selected"})
		return
	}

	waiting, loaned := h.tracking.Lists().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"waiting":      waiting,
		"loaned":       loaned,
		"historyCount": h.tracking.Lists().HistoryCount(),
	})
}
