package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkHours is one user's clock session for a calendar day. ClockIn and
// ClockOut are "hh:mm AM/PM" strings; an empty ClockOut means the session is
// still open.
type WorkHours struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Date      time.Time `json:"date" db:"work_date"`
	ClockIn   string    `json:"clock_in" db:"clock_in"`
	ClockOut  string    `json:"clock_out,omitempty" db:"clock_out"`
	Hours     float64   `json:"hours" db:"hours"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (w *WorkHours) Open() bool {
	return w.ClockOut == ""
}

// Day truncates t to its calendar day in t's location and returns it as a
// UTC midnight, which is how work dates are stored.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
