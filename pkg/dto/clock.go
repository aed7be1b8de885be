package dto

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/session"
)

// DateLayout is the wire format of work dates.
const DateLayout = "2006-01-02"

type ClockInRequest struct {
	Password string `json:"password"`
}

type ClockOutRequest struct {
	Password string `json:"password"`
	// Summary clocks out from the end-of-day summary without re-entering
	// the password.
	Summary bool `json:"summary"`
}

type WorkHoursResponse struct {
	Date     string  `json:"date"`
	ClockIn  string  `json:"clock_in"`
	ClockOut string  `json:"clock_out,omitempty"`
	Hours    float64 `json:"hours"`
	Open     bool    `json:"open"`
}

func NewWorkHoursResponse(wh *models.WorkHours) WorkHoursResponse {
	return WorkHoursResponse{
		Date:     wh.Date.Format(DateLayout),
		ClockIn:  wh.ClockIn,
		ClockOut: wh.ClockOut,
		Hours:    round2(wh.Hours),
		Open:     wh.Open(),
	}
}

type ClockResponse struct {
	Message      string            `json:"message"`
	User         UserResponse      `json:"user"`
	Record       WorkHoursResponse `json:"record"`
	BreakMinutes int               `json:"break_minutes"`
	ActualHours  float64           `json:"actual_hours"`
}

func NewClockResponse(res *session.ClockResult) ClockResponse {
	return ClockResponse{
		Message:      ClockMessage(res),
		User:         NewUserResponse(res.User),
		Record:       NewWorkHoursResponse(res.Record),
		BreakMinutes: res.BreakMinutes,
		ActualHours:  round2(res.ActualHours),
	}
}

// ClockMessage greets a clock-in and says goodbye on a clock-out. An open
// record means the transition was a clock-in.
func ClockMessage(res *session.ClockResult) string {
	if res.Record != nil && res.Record.Open() {
		return fmt.Sprintf("Welcome, %s!", res.User.Name)
	}
	return fmt.Sprintf("Goodbye, %s!", res.User.Name)
}

type BreakRequest struct {
	Type   models.BreakType `json:"type" binding:"required,oneof=short meal"`
	Action string           `json:"action" binding:"required,oneof=start end"`
}

type BreakResponse struct {
	ID              uuid.UUID        `json:"id"`
	Type            models.BreakType `json:"type"`
	StartedAt       string           `json:"started_at"`
	EndedAt         string           `json:"ended_at,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	Active          bool             `json:"active"`
	User            UserResponse     `json:"user"`
}

func NewBreakResponse(res *session.BreakResult) BreakResponse {
	b := res.Break
	resp := BreakResponse{
		ID:              b.ID,
		Type:            b.Type,
		StartedAt:       b.StartedAt.UTC().Format(time.RFC3339),
		DurationMinutes: b.DurationMinutes,
		Active:          b.Active,
		User:            NewUserResponse(res.User),
	}
	if b.EndedAt != nil {
		resp.EndedAt = b.EndedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type StatusResponse struct {
	User        UserResponse       `json:"user"`
	OpenSession *WorkHoursResponse `json:"open_session,omitempty"`
}

func NewStatusResponse(st *session.Status) StatusResponse {
	resp := StatusResponse{User: NewUserResponse(st.User)}
	if st.OpenSession != nil {
		wh := NewWorkHoursResponse(st.OpenSession)
		resp.OpenSession = &wh
	}
	return resp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
