package dto

import (
	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/timesheet"
)

// NoData stands in for statistics that could not be computed.
const NoData = "N/A"

type DayResponse struct {
	Date               string  `json:"date"`
	Day                string  `json:"day"`
	ClockIn            string  `json:"clock_in"`
	ClockOut           string  `json:"clock_out"`
	TotalHours         float64 `json:"total_hours"`
	BreakHours         float64 `json:"break_hours"`
	ActualWorkingHours float64 `json:"actual_working_hours"`
}

type WeekResponse struct {
	Offset int           `json:"week_offset"`
	Label  string        `json:"label"`
	Start  string        `json:"start"`
	End    string        `json:"end"`
	Days   []DayResponse `json:"days"`
}

func NewWeekResponse(w *timesheet.Week) WeekResponse {
	resp := WeekResponse{
		Offset: w.Offset,
		Label:  w.Label,
		Start:  w.Start.Format(DateLayout),
		End:    w.End.Format(DateLayout),
		Days:   make([]DayResponse, 0, len(w.Days)),
	}
	for _, d := range w.Days {
		resp.Days = append(resp.Days, DayResponse{
			Date:               d.Date.Format(DateLayout),
			Day:                d.Day,
			ClockIn:            d.ClockIn,
			ClockOut:           d.ClockOut,
			TotalHours:         round2(d.TotalHours),
			BreakHours:         round2(d.BreakHours),
			ActualWorkingHours: round2(d.ActualWorkingHours),
		})
	}
	return resp
}

// StatsResponse renders unavailable values as "N/A". The hour fields hold
// either a number or that marker.
type StatsResponse struct {
	AvgClockIn          string `json:"avg_clock_in"`
	AvgClockOut         string `json:"avg_clock_out"`
	AvgWorkingHours     any    `json:"avg_working_hours"`
	TotalPayPeriodHours any    `json:"total_pay_period_hours"`
	HasActiveSession    bool   `json:"has_active_session"`
	Sessions            int    `json:"sessions"`
	ClosedSessions      int    `json:"closed_sessions"`
}

func NewStatsResponse(s *timesheet.Stats) StatsResponse {
	return StatsResponse{
		AvgClockIn:          stringOr(s.AvgClockIn),
		AvgClockOut:         stringOr(s.AvgClockOut),
		AvgWorkingHours:     numberOr(s.AvgWorkingHours),
		TotalPayPeriodHours: numberOr(s.TotalPayPeriodHours),
		HasActiveSession:    s.HasActiveSession,
		Sessions:            s.Sessions,
		ClosedSessions:      s.ClosedSessions,
	}
}

func stringOr(v *string) string {
	if v == nil {
		return NoData
	}
	return *v
}

func numberOr(v *float64) any {
	if v == nil {
		return NoData
	}
	return *v
}

type EditWorkHoursRequest struct {
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	ClockIn  string     `json:"clock_in" binding:"required"`
	ClockOut string     `json:"clock_out" binding:"required"`
	// Hours overrides the value computed from the clock strings.
	Hours *float64 `json:"hours,omitempty"`
}

type BulkDeleteRequest struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Dates  []string   `json:"dates" binding:"required,min=1,dive,datetime=2006-01-02"`
}

type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}
