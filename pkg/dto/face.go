package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/face"
)

type RegisterFaceRequest struct {
	// UserID lets an admin enroll someone else. Ignored for other roles.
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Descriptor []float32  `json:"descriptor" binding:"required"`
	// Snapshot is an optional base64-encoded image.
	Snapshot            []byte `json:"snapshot,omitempty"`
	SnapshotContentType string `json:"snapshot_content_type,omitempty"`
}

type DescriptorRequest struct {
	Descriptor []float32 `json:"descriptor" binding:"required"`
}

type IdentityResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Distance   float64   `json:"distance"`
	Confidence float64   `json:"confidence"`
}

func NewIdentityResponse(id *face.Identity) IdentityResponse {
	return IdentityResponse{
		UserID:     id.UserID,
		Name:       id.Name,
		Role:       string(id.Role),
		Distance:   round2(id.Distance),
		Confidence: round2(id.Confidence),
	}
}

type FaceClockResponse struct {
	Message  string           `json:"message"`
	Identity IdentityResponse `json:"identity"`
	Clock    ClockResponse    `json:"clock"`
}

func NewFaceClockResponse(res *face.ClockResult) FaceClockResponse {
	clock := NewClockResponse(res.Clock)
	return FaceClockResponse{
		Message:  clock.Message,
		Identity: NewIdentityResponse(res.Identity),
		Clock:    clock,
	}
}
