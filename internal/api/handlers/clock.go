package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/session"
	"github.com/your-org/timeclock/pkg/dto"
)

type ClockHandler struct {
	sessions *session.Service
}

func NewClockHandler(sessions *session.Service) *ClockHandler {
	return &ClockHandler{sessions: sessions}
}

func (h *ClockHandler) ClockIn(c *gin.Context) {
	var req dto.ClockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.sessions.ClockInWithPassword(c.Request.Context(), auth.UserIDFrom(c), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewClockResponse(res))
}

func (h *ClockHandler) ClockOut(c *gin.Context) {
	var req dto.ClockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	res, err := h.sessions.ClockOutWithPassword(c.Request.Context(), auth.UserIDFrom(c), req.Password, req.Summary)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewClockResponse(res))
}

func (h *ClockHandler) Status(c *gin.Context) {
	userID, err := queryUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	st, err := h.sessions.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStatusResponse(st))
}

// Break starts or ends a break of the given type for the caller.
func (h *ClockHandler) Break(c *gin.Context) {
	var req dto.BreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := auth.UserIDFrom(c)

	var (
		res *session.BreakResult
		err error
	)
	if req.Action == "start" {
		res, err = h.sessions.StartBreak(ctx, userID, req.Type)
	} else {
		res, err = h.sessions.EndBreak(ctx, userID, req.Type)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBreakResponse(res))
}
