package timesheet

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/models"
)

const (
	// MinWeekOffset is how many weeks back the weekly view may go.
	MinWeekOffset = -4
	// Absent marks a missing clock-in/clock-out in the weekly view.
	Absent        = "–"
	// DaysPerWeek covers Monday through Saturday.
	DaysPerWeek   = 6
)

const statsWindowDays = 30

var ErrInvalidWeekOffset = apperr.Validation("invalid_week_offset",
	fmt.Sprintf("week offset must be between %d and 0", MinWeekOffset))

// Store is the read side the aggregations need.
type Store interface {
	// ListWorkHours returns the user's records with work dates in [from, to].
	ListWorkHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.WorkHours, error)
	// ListClosedBreaks returns the user's closed breaks started in [from, to).
	ListClosedBreaks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Break, error)
}

type Service struct {
	store Store
	loc   *time.Location
	// Now is overridable for tests.
	Now func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, Now: time.Now}
}

type DayEntry struct {
	Date               time.Time `json:"date"`
	Day                string    `json:"day"`
	ClockIn            string    `json:"clock_in"`
	ClockOut           string    `json:"clock_out"`
	TotalHours         float64   `json:"total_hours"`
	BreakHours         float64   `json:"break_hours"`
	ActualWorkingHours float64   `json:"actual_working_hours"`
}

type Week struct {
	Offset int        `json:"offset"`
	Label  string     `json:"label"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Days   []DayEntry `json:"days"`
}

// WeeklyBreakdown builds the Monday to Saturday view of the week weekOffset
// weeks before the current one. Days without a record are reported as zero
// hours rather than omitted.
func (s *Service) WeeklyBreakdown(ctx context.Context, userID uuid.UUID, weekOffset int) (*Week, error) {
	if weekOffset < MinWeekOffset || weekOffset > 0 {
		return nil, ErrInvalidWeekOffset
	}

	monday := WeekStart(s.Now().In(s.loc)).AddDate(0, 0, 7*weekOffset)
	saturday := monday.AddDate(0, 0, DaysPerWeek-1)

	records, err := s.store.ListWorkHours(ctx, userID, monday, saturday)
	if err != nil {
		return nil, apperr.Internal("list work hours", err)
	}
	byDay := make(map[time.Time]models.WorkHours, len(records))
	for _, r := range records {
		byDay[models.Day(r.Date)] = r
	}

	from := s.localMidnight(monday)
	to := s.localMidnight(saturday.AddDate(0, 0, 1))
	breaks, err := s.store.ListClosedBreaks(ctx, userID, from, to)
	if err != nil {
		return nil, apperr.Internal("list breaks", err)
	}
	breakMinutes := make(map[time.Time]int)
	for _, b := range breaks {
		if b.DurationMinutes == nil {
			continue
		}
		breakMinutes[models.Day(b.StartedAt.In(s.loc))] += *b.DurationMinutes
	}

	week := &Week{
		Offset: weekOffset,
		Label:  fmt.Sprintf("%s - %s", monday.Format("Jan 2"), saturday.Format("Jan 2")),
		Start:  monday,
		End:    saturday,
		Days:   make([]DayEntry, 0, DaysPerWeek),
	}
	for i := 0; i < DaysPerWeek; i++ {
		day := monday.AddDate(0, 0, i)
		entry := DayEntry{
			Date:     day,
			Day:      day.Format("Mon"),
			ClockIn:  Absent,
			ClockOut: Absent,
		}
		if r, ok := byDay[day]; ok {
			if r.ClockIn != "" {
				entry.ClockIn = r.ClockIn
			}
			if !r.Open() {
				entry.ClockOut = r.ClockOut
				entry.TotalHours = r.Hours
			}
		}
		entry.BreakHours = float64(breakMinutes[day]) / 60
		entry.ActualWorkingHours = math.Max(0, entry.TotalHours-entry.BreakHours)
		week.Days = append(week.Days, entry)
	}
	return week, nil
}

// Stats summarises the trailing 30 days. Nil fields mean there was no data
// to compute them from.
type Stats struct {
	AvgClockIn          *string  `json:"avg_clock_in"`
	AvgClockOut         *string  `json:"avg_clock_out"`
	AvgWorkingHours     *float64 `json:"avg_working_hours"`
	TotalPayPeriodHours *float64 `json:"total_pay_period_hours"`
	HasActiveSession    bool     `json:"has_active_session"`
	Sessions            int      `json:"sessions"`
	ClosedSessions      int      `json:"closed_sessions"`
}

// ThirtyDayStats averages clock-in over every session in the window but
// clock-out and hours over closed sessions only, so an open session never
// skews them.
func (s *Service) ThirtyDayStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	today := models.Day(s.Now().In(s.loc))
	from := today.AddDate(0, 0, -(statsWindowDays - 1))

	records, err := s.store.ListWorkHours(ctx, userID, from, today)
	if err != nil {
		return nil, apperr.Internal("list work hours", err)
	}

	stats := &Stats{Sessions: len(records)}
	var inSum, inCount, outSum, outCount int
	var hoursSum float64
	for _, r := range records {
		if m, ok := ParseClock(r.ClockIn); ok {
			inSum += m
			inCount++
		}
		if r.Open() {
			stats.HasActiveSession = true
			continue
		}
		stats.ClosedSessions++
		hoursSum += r.Hours
		if m, ok := ParseClock(r.ClockOut); ok {
			outSum += m
			outCount++
		}
	}

	if inCount > 0 {
		v := FormatClock(roundDiv(inSum, inCount))
		stats.AvgClockIn = &v
	}
	if outCount > 0 {
		v := FormatClock(roundDiv(outSum, outCount))
		stats.AvgClockOut = &v
	}
	if stats.ClosedSessions > 0 {
		avg := round2(hoursSum / float64(stats.ClosedSessions))
		total := round2(hoursSum)
		stats.AvgWorkingHours = &avg
		stats.TotalPayPeriodHours = &total
	}
	return stats, nil
}

func (s *Service) localMidnight(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
