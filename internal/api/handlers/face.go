package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/face"
	"github.com/your-org/timeclock/pkg/dto"
)

const maxSnapshotBytes = 5 << 20

type FaceHandler struct {
	faces *face.Service
}

func NewFaceHandler(faces *face.Service) *FaceHandler {
	return &FaceHandler{faces: faces}
}

func (h *FaceHandler) Register(c *gin.Context) {
	var req dto.RegisterFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID, err := targetUser(c, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	var snap *face.Snapshot
	if len(req.Snapshot) > 0 {
		if len(req.Snapshot) > maxSnapshotBytes {
			respondError(c, apperr.Invalid("snapshot exceeds %d bytes", maxSnapshotBytes))
			return
		}
		contentType := req.SnapshotContentType
		if contentType == "" {
			contentType = http.DetectContentType(req.Snapshot)
		}
		snap = &face.Snapshot{Data: req.Snapshot, ContentType: contentType}
	}

	u, err := h.faces.Register(c.Request.Context(), userID, req.Descriptor, snap)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewUserResponse(u))
}

func (h *FaceHandler) Identify(c *gin.Context) {
	var req dto.DescriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	id, err := h.faces.Identify(c.Request.Context(), req.Descriptor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewIdentityResponse(id))
}

func (h *FaceHandler) ClockIn(c *gin.Context) {
	var req dto.DescriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.faces.ClockIn(c.Request.Context(), req.Descriptor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFaceClockResponse(res))
}

func (h *FaceHandler) ClockOut(c *gin.Context) {
	var req dto.DescriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.faces.ClockOut(c.Request.Context(), req.Descriptor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFaceClockResponse(res))
}
