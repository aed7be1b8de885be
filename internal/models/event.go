package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventClockIn          EventType = "clock_in"
	EventClockOut         EventType = "clock_out"
	EventBreakStart       EventType = "break_start"
	EventBreakEnd         EventType = "break_end"
	EventFaceRegistered   EventType = "face_registered"
	EventWorkHoursEdited  EventType = "work_hours_edited"
	EventWorkHoursDeleted EventType = "work_hours_deleted"
)

type Method string

const (
	MethodFace     Method = "face"
	MethodPassword Method = "password"
	MethodManual   Method = "manual"
	MethodSelf     Method = "self"
)

// AttendanceEvent is published to NATS after every successful state
// transition and persisted by the worker as an audit trail.
type AttendanceEvent struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	UserName     string    `json:"user_name" db:"user_name"`
	Type         EventType `json:"type" db:"type"`
	Method       Method    `json:"method" db:"method"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Present      bool      `json:"present" db:"present"`
	Hours        float64   `json:"hours,omitempty" db:"hours"`
	BreakType    BreakType `json:"break_type,omitempty" db:"break_type"`
	BreakMinutes int       `json:"break_minutes,omitempty" db:"break_minutes"`
}
