package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/pkg/dto"
)

type EventStore interface {
	ListAttendanceEvents(ctx context.Context, userID *uuid.UUID, limit int) ([]models.AttendanceEvent, error)
}

type EventHandler struct {
	events EventStore
}

func NewEventHandler(events EventStore) *EventHandler {
	return &EventHandler{events: events}
}

// List returns the most recent attendance events, newest first.
func (h *EventHandler) List(c *gin.Context) {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, apperr.Invalid("invalid user_id"))
			return
		}
		userID = &id
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.events.ListAttendanceEvents(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, apperr.Internal("list attendance events", err))
		return
	}

	resp := dto.EventListResponse{Events: make([]dto.EventResponse, 0, len(events)), Total: len(events)}
	for i := range events {
		resp.Events = append(resp.Events, dto.NewEventResponse(&events[i]))
	}
	c.JSON(http.StatusOK, resp)
}
