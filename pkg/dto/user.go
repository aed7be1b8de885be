package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

type CreateUserRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     models.Role `json:"role" binding:"required,oneof=ADMIN EMPLOYEE CLIENT"`
}

type UserResponse struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	Role           models.Role        `json:"role"`
	FaceRegistered bool               `json:"face_registered"`
	ClockStatus    models.ClockStatus `json:"clock_status"`
	BreakStatus    models.BreakStatus `json:"break_status"`
	BreakType      models.BreakType   `json:"break_type,omitempty"`
	Present        bool               `json:"present"`
	TOTPEnabled    bool               `json:"totp_enabled"`
	CreatedAt      string             `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		FaceRegistered: u.FaceRegistered,
		ClockStatus:    u.ClockStatus,
		BreakStatus:    u.BreakStatus,
		BreakType:      u.BreakType,
		Present:        u.Present(),
		TOTPEnabled:    u.TOTPEnabled,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// PresenceResponse is the admin roster with the derived presence flag.
type PresenceResponse struct {
	Users   []UserResponse `json:"users"`
	Present int            `json:"present"`
	Total   int            `json:"total"`
}
