package models

import (
	"time"

	"github.com/google/uuid"
)

type BreakType string

const (
	BreakTypeShort BreakType = "short"
	BreakTypeMeal  BreakType = "meal"
)

func (t BreakType) Valid() bool {
	return t == BreakTypeShort || t == BreakTypeMeal
}

type Break struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	Type            BreakType  `json:"type" db:"type"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Active          bool       `json:"active" db:"active"`
}
