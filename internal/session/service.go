// Package session owns the per-user clock and break state machines and the
// manual work-hours edits that go with them.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/apperr"
	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/timesheet"
)

type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetClockStatus(ctx context.Context, id uuid.UUID, status models.ClockStatus) error
	SetBreakStatus(ctx context.Context, id uuid.UUID, status models.BreakStatus, breakType models.BreakType) error

	GetWorkHoursByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.WorkHours, error)
	FindOpenWorkHours(ctx context.Context, userID uuid.UUID) (*models.WorkHours, error)
	InsertWorkHours(ctx context.Context, wh *models.WorkHours) error
	CloseWorkHours(ctx context.Context, id uuid.UUID, clockOut string, hours float64) (bool, error)
	UpsertWorkHours(ctx context.Context, wh *models.WorkHours) error
	DeleteWorkHours(ctx context.Context, userID uuid.UUID, dates []time.Time) (int64, error)

	InsertBreak(ctx context.Context, b *models.Break) error
	FindActiveBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (*models.Break, error)
	CloseBreak(ctx context.Context, id uuid.UUID, endedAt time.Time, minutes int) (bool, error)
	ListClosedBreaks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Break, error)
}

// Publisher receives an event after every successful transition.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *models.AttendanceEvent) error
}

type Service struct {
	store     Store
	publisher Publisher
	loc       *time.Location
	// Now is overridable for tests.
	Now func() time.Time
}

// NewService builds the service. publisher may be nil.
func NewService(store Store, publisher Publisher, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, publisher: publisher, loc: loc, Now: time.Now}
}

// ClockResult describes a completed clock transition.
type ClockResult struct {
	User         *models.User      `json:"user"`
	Record       *models.WorkHours `json:"record"`
	BreakMinutes int               `json:"break_minutes"`
	ActualHours  float64           `json:"actual_hours"`
}

func (s *Service) ClockIn(ctx context.Context, userID uuid.UUID, method models.Method) (res *ClockResult, err error) {
	defer func() { observe("clock_in", method, err) }()

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := models.Day(now)
	existing, err := s.store.GetWorkHoursByDate(ctx, userID, today)
	if err != nil {
		return nil, apperr.Internal("get work hours", err)
	}
	if existing != nil {
		return nil, ErrAlreadyClockedInToday
	}
	if u.ClockStatus == models.ClockStatusIn {
		return nil, ErrAlreadyClockedIn
	}

	wh := &models.WorkHours{
		UserID:  userID,
		Date:    today,
		ClockIn: timesheet.FormatTime(now),
	}
	if err := s.store.InsertWorkHours(ctx, wh); err != nil {
		switch {
		case errors.Is(err, storage.ErrWorkDayExists):
			return nil, ErrAlreadyClockedInToday
		case errors.Is(err, storage.ErrOpenSessionExists):
			return nil, ErrAlreadyClockedIn
		}
		return nil, apperr.Internal("insert work hours", err)
	}
	if err := s.store.SetClockStatus(ctx, userID, models.ClockStatusIn); err != nil {
		return nil, apperr.Internal("set clock status", err)
	}
	u.ClockStatus = models.ClockStatusIn

	s.emit(ctx, u, models.EventClockIn, method, now, nil)
	return &ClockResult{User: u, Record: wh}, nil
}

func (s *Service) ClockOut(ctx context.Context, userID uuid.UUID, method models.Method) (res *ClockResult, err error) {
	defer func() { observe("clock_out", method, err) }()

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ClockStatus != models.ClockStatusIn {
		return nil, ErrNotClockedIn
	}
	if u.BreakStatus == models.BreakStatusActive {
		return nil, ErrOnBreak
	}

	open, err := s.store.FindOpenWorkHours(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("find open work hours", err)
	}
	if open == nil {
		return nil, ErrNoActiveSession
	}

	now := s.now()
	clockOut := timesheet.FormatTime(now)
	hours := timesheet.ComputeHours(open.ClockIn, clockOut)

	closed, err := s.store.CloseWorkHours(ctx, open.ID, clockOut, hours)
	if err != nil {
		return nil, apperr.Internal("close work hours", err)
	}
	if !closed {
		return nil, ErrAlreadyClockedOut
	}
	if err := s.store.SetClockStatus(ctx, userID, models.ClockStatusOut); err != nil {
		return nil, apperr.Internal("set clock status", err)
	}
	u.ClockStatus = models.ClockStatusOut
	open.ClockOut = clockOut
	open.Hours = hours

	res = &ClockResult{User: u, Record: open, ActualHours: hours}
	if minutes, err := s.breakMinutes(ctx, userID, open.Date, now); err != nil {
		slog.Warn("sum breaks for clock-out summary", "user_id", userID, "error", err)
	} else {
		res.BreakMinutes = minutes
		res.ActualHours = math.Max(0, hours-float64(minutes)/60)
	}

	s.emit(ctx, u, models.EventClockOut, method, now, func(ev *models.AttendanceEvent) {
		ev.Hours = hours
		ev.BreakMinutes = res.BreakMinutes
	})
	return res, nil
}

// ClockInWithPassword re-verifies the caller's password before clocking in.
func (s *Service) ClockInWithPassword(ctx context.Context, userID uuid.UUID, password string) (*ClockResult, error) {
	if err := s.verifyPassword(ctx, userID, password); err != nil {
		observe("clock_in", models.MethodPassword, err)
		return nil, err
	}
	return s.ClockIn(ctx, userID, models.MethodPassword)
}

// ClockOutWithPassword re-verifies the password unless summary is set, in
// which case the already authenticated caller is clocking out from the
// end-of-day summary and no password is asked for.
func (s *Service) ClockOutWithPassword(ctx context.Context, userID uuid.UUID, password string, summary bool) (*ClockResult, error) {
	if summary {
		return s.ClockOut(ctx, userID, models.MethodSelf)
	}
	if err := s.verifyPassword(ctx, userID, password); err != nil {
		observe("clock_out", models.MethodPassword, err)
		return nil, err
	}
	return s.ClockOut(ctx, userID, models.MethodPassword)
}

func (s *Service) verifyPassword(ctx context.Context, userID uuid.UUID, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return ErrInvalidPassword
	}
	return nil
}

// BreakResult describes a completed break transition.
type BreakResult struct {
	User  *models.User  `json:"user"`
	Break *models.Break `json:"break"`
}

func (s *Service) StartBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (res *BreakResult, err error) {
	defer func() { observe("break_start", models.MethodSelf, err) }()

	if !breakType.Valid() {
		return nil, ErrInvalidBreakType
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &models.Break{UserID: userID, Type: breakType, StartedAt: now}
	if err := s.store.InsertBreak(ctx, b); err != nil {
		if errors.Is(err, storage.ErrActiveBreakExists) {
			return nil, ErrBreakAlreadyActive
		}
		return nil, apperr.Internal("insert break", err)
	}
	if err := s.store.SetBreakStatus(ctx, userID, models.BreakStatusActive, breakType); err != nil {
		return nil, apperr.Internal("set break status", err)
	}
	u.BreakStatus = models.BreakStatusActive
	u.BreakType = breakType

	s.emit(ctx, u, models.EventBreakStart, models.MethodSelf, now, func(ev *models.AttendanceEvent) {
		ev.BreakType = breakType
	})
	return &BreakResult{User: u, Break: b}, nil
}

func (s *Service) EndBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (res *BreakResult, err error) {
	defer func() { observe("break_end", models.MethodSelf, err) }()

	if !breakType.Valid() {
		return nil, ErrInvalidBreakType
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	b, err := s.store.FindActiveBreak(ctx, userID, breakType)
	if err != nil {
		return nil, apperr.Internal("find active break", err)
	}
	if b == nil {
		return nil, ErrNoActiveBreak
	}

	now := s.now()
	minutes := BreakMinutes(b.StartedAt, now)
	closed, err := s.store.CloseBreak(ctx, b.ID, now, minutes)
	if err != nil {
		return nil, apperr.Internal("close break", err)
	}
	if !closed {
		return nil, ErrNoActiveBreak
	}
	if err := s.store.SetBreakStatus(ctx, userID, models.BreakStatusNone, ""); err != nil {
		return nil, apperr.Internal("set break status", err)
	}
	u.BreakStatus = models.BreakStatusNone
	u.BreakType = ""
	b.Active = false
	b.EndedAt = &now
	b.DurationMinutes = &minutes

	s.emit(ctx, u, models.EventBreakEnd, models.MethodSelf, now, func(ev *models.AttendanceEvent) {
		ev.BreakType = breakType
		ev.BreakMinutes = minutes
	})
	return &BreakResult{User: u, Break: b}, nil
}

// BreakMinutes is the break length rounded to the nearest whole minute.
func BreakMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(math.Round(end.Sub(start).Minutes()))
}

type Status struct {
	User        *models.User       `json:"user"`
	ClockStatus models.ClockStatus `json:"clock_status"`
	BreakStatus models.BreakStatus `json:"break_status"`
	BreakType   models.BreakType   `json:"break_type,omitempty"`
	Present     bool               `json:"present"`
	OpenSession *models.WorkHours  `json:"open_session,omitempty"`
}

func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.FindOpenWorkHours(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("find open work hours", err)
	}
	return &Status{
		User:        u,
		ClockStatus: u.ClockStatus,
		BreakStatus: u.BreakStatus,
		BreakType:   u.BreakType,
		Present:     u.Present(),
		OpenSession: open,
	}, nil
}

// EditWorkHours overwrites or creates the record for date. hours, when
// given, replaces the value computed from the clock strings.
func (s *Service) EditWorkHours(ctx context.Context, userID uuid.UUID, date time.Time, clockIn, clockOut string, hours *float64) (*models.WorkHours, error) {
	inMin, ok := timesheet.ParseClock(clockIn)
	if !ok {
		return nil, apperr.Invalid("clock_in %q is not in hh:mm AM/PM format", clockIn)
	}
	outMin, ok := timesheet.ParseClock(clockOut)
	if !ok {
		return nil, apperr.Invalid("clock_out %q is not in hh:mm AM/PM format", clockOut)
	}
	if hours != nil && (*hours < 0 || math.IsNaN(*hours) || math.IsInf(*hours, 0)) {
		return nil, apperr.Invalid("hours must be a non-negative number")
	}

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := models.Day(date)
	previous, err := s.store.GetWorkHoursByDate(ctx, userID, day)
	if err != nil {
		return nil, apperr.Internal("get work hours", err)
	}

	wh := &models.WorkHours{
		UserID:   userID,
		Date:     day,
		ClockIn:  timesheet.FormatClock(inMin),
		ClockOut: timesheet.FormatClock(outMin),
	}
	if hours != nil {
		wh.Hours = *hours
	} else {
		wh.Hours = timesheet.ComputeHours(wh.ClockIn, wh.ClockOut)
	}
	if err := s.store.UpsertWorkHours(ctx, wh); err != nil {
		return nil, apperr.Internal("upsert work hours", err)
	}

	// Editing the open session closes it.
	if previous != nil && previous.Open() && u.ClockStatus == models.ClockStatusIn {
		if err := s.store.SetClockStatus(ctx, userID, models.ClockStatusOut); err != nil {
			return nil, apperr.Internal("set clock status", err)
		}
		u.ClockStatus = models.ClockStatusOut
	}

	s.emit(ctx, u, models.EventWorkHoursEdited, models.MethodManual, s.now(), func(ev *models.AttendanceEvent) {
		ev.Hours = wh.Hours
	})
	return wh, nil
}

// DeleteWorkHours removes the records for the given dates and returns how
// many were deleted.
func (s *Service) DeleteWorkHours(ctx context.Context, userID uuid.UUID, dates ...time.Time) (int64, error) {
	if len(dates) == 0 {
		return 0, apperr.Invalid("at least one date is required")
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return 0, err
	}

	n, err := s.store.DeleteWorkHours(ctx, userID, dates)
	if err != nil {
		return 0, apperr.Internal("delete work hours", err)
	}
	if n == 0 {
		return 0, ErrWorkHoursNotFound
	}

	if u.ClockStatus == models.ClockStatusIn {
		open, err := s.store.FindOpenWorkHours(ctx, userID)
		if err != nil {
			return 0, apperr.Internal("find open work hours", err)
		}
		if open == nil {
			if err := s.store.SetClockStatus(ctx, userID, models.ClockStatusOut); err != nil {
				return 0, apperr.Internal("set clock status", err)
			}
			u.ClockStatus = models.ClockStatusOut
		}
	}

	s.emit(ctx, u, models.EventWorkHoursDeleted, models.MethodManual, s.now(), nil)
	return n, nil
}

func (s *Service) user(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Service) now() time.Time {
	return s.Now().In(s.loc)
}

// breakMinutes sums the closed breaks that started between the session's
// work date and now.
func (s *Service) breakMinutes(ctx context.Context, userID uuid.UUID, workDate, now time.Time) (int, error) {
	y, m, d := workDate.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	breaks, err := s.store.ListClosedBreaks(ctx, userID, from, now.Add(time.Second))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range breaks {
		if b.DurationMinutes != nil {
			total += *b.DurationMinutes
		}
	}
	return total, nil
}

func (s *Service) emit(ctx context.Context, u *models.User, typ models.EventType, method models.Method, at time.Time, fill func(*models.AttendanceEvent)) {
	if s.publisher == nil {
		return
	}
	ev := &models.AttendanceEvent{
		ID:        uuid.New(),
		UserID:    u.ID,
		UserName:  u.Name,
		Type:      typ,
		Method:    method,
		Timestamp: at.UTC(),
		Present:   u.Present(),
	}
	if fill != nil {
		fill(ev)
	}
	if err := s.publisher.PublishEvent(ctx, ev); err != nil {
		slog.Warn("publish attendance event", "type", typ, "user_id", u.ID, "error", err)
	}
}

func observe(action string, method models.Method, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.CodeOf(err)
	}
	observability.ClockActions.WithLabelValues(action, string(method), outcome).Inc()
}
