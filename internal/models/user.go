package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleClient   Role = "CLIENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

type ClockStatus string

const (
	ClockStatusOut ClockStatus = "out"
	ClockStatusIn  ClockStatus = "in"
)

type BreakStatus string

const (
	BreakStatusNone   BreakStatus = "none"
	BreakStatusActive BreakStatus = "active"
)

type User struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Name            string      `json:"name" db:"name"`
	Email           string      `json:"email" db:"email"`
	Role            Role        `json:"role" db:"role"`
	PasswordHash    string      `json:"-" db:"password_hash"`
	FaceRegistered  bool        `json:"face_registered" db:"-"`
	FaceSnapshotKey string      `json:"face_snapshot_key,omitempty" db:"face_snapshot_key"`
	ClockStatus     ClockStatus `json:"clock_status" db:"clock_status"`
	BreakStatus     BreakStatus `json:"break_status" db:"break_status"`
	BreakType       BreakType   `json:"break_type,omitempty" db:"break_type"`
	TOTPSecret      string      `json:"-" db:"totp_secret"`
	TOTPEnabled     bool        `json:"totp_enabled" db:"totp_enabled"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// Present is the combined "currently working" view: clocked in and not on a
// break.
func (u *User) Present() bool {
	return u.ClockStatus == ClockStatusIn && u.BreakStatus == BreakStatusNone
}

// FaceDescriptor is a stored descriptor together with the identity it
// belongs to.
type FaceDescriptor struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Descriptor []float32 `json:"-"`
}

// FaceCandidate is a stored identity ranked by distance to a probe.
type FaceCandidate struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Distance float64   `json:"distance"`
}
