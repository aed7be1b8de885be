package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

type EventResponse struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	UserName     string           `json:"user_name"`
	Type         models.EventType `json:"type"`
	Method       models.Method    `json:"method"`
	Timestamp    string           `json:"timestamp"`
	Present      bool             `json:"present"`
	Hours        float64          `json:"hours,omitempty"`
	BreakType    models.BreakType `json:"break_type,omitempty"`
	BreakMinutes int              `json:"break_minutes,omitempty"`
}

func NewEventResponse(ev *models.AttendanceEvent) EventResponse {
	return EventResponse{
		ID:           ev.ID,
		UserID:       ev.UserID,
		UserName:     ev.UserName,
		Type:         ev.Type,
		Method:       ev.Method,
		Timestamp:    ev.Timestamp.UTC().Format(time.RFC3339),
		Present:      ev.Present,
		Hours:        round2(ev.Hours),
		BreakType:    ev.BreakType,
		BreakMinutes: ev.BreakMinutes,
	}
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// WSEvent is a WebSocket message for real-time attendance delivery.
type WSEvent struct {
	Type string        `json:"type"` // attendance
	Data EventResponse `json:"data"`
}
