package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/session"
	"github.com/your-org/timeclock/internal/timesheet"
	"github.com/your-org/timeclock/pkg/dto"
)

type WorkHoursHandler struct {
	sheet    *timesheet.Service
	sessions *session.Service
}

func NewWorkHoursHandler(sheet *timesheet.Service, sessions *session.Service) *WorkHoursHandler {
	return &WorkHoursHandler{sheet: sheet, sessions: sessions}
}

func (h *WorkHoursHandler) Weekly(c *gin.Context) {
	userID, err := queryUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("week_offset", "0"))
	if err != nil {
		respondError(c, timesheet.ErrInvalidWeekOffset)
		return
	}

	week, err := h.sheet.WeeklyBreakdown(c.Request.Context(), userID, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWeekResponse(week))
}

func (h *WorkHoursHandler) Stats(c *gin.Context) {
	userID, err := queryUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.sheet.ThirtyDayStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStatsResponse(stats))
}

func (h *WorkHoursHandler) Edit(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req dto.EditWorkHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID, err := targetUser(c, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	wh, err := h.sessions.EditWorkHours(c.Request.Context(), userID, date, req.ClockIn, req.ClockOut, req.Hours)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewWorkHoursResponse(wh))
}

func (h *WorkHoursHandler) Delete(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}

	userID, err := queryUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	n, err := h.sessions.DeleteWorkHours(c.Request.Context(), userID, date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: n})
}

func (h *WorkHoursHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	userID, err := targetUser(c, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		d, err := parseDate(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		dates = append(dates, d)
	}

	n, err := h.sessions.DeleteWorkHours(c.Request.Context(), userID, dates...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: n})
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dto.DateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Invalid("date %q must be YYYY-MM-DD", raw)
	}
	return d, nil
}
