package session

import "github.com/your-org/timeclock/internal/apperr"

var (
	ErrUserNotFound          = apperr.NotFound("user_not_found", "user not found")
	ErrAlreadyClockedIn      = apperr.Conflict("already_clocked_in", "already clocked in")
	ErrAlreadyClockedInToday = apperr.Conflict("already_clocked_in_today", "already clocked in today")
	ErrNotClockedIn          = apperr.Conflict("not_clocked_in", "not clocked in")
	ErrNoActiveSession       = apperr.Conflict("no_active_session", "no open work session")
	ErrAlreadyClockedOut     = apperr.Conflict("already_clocked_out", "work session already closed")
	ErrOnBreak               = apperr.Conflict("on_break", "end the active break before clocking out")
	ErrBreakAlreadyActive    = apperr.Conflict("break_already_active", "a break is already active")
	ErrNoActiveBreak         = apperr.Conflict("no_active_break", "no active break of this type")
	ErrInvalidBreakType      = apperr.Validation("invalid_break_type", "break type must be short or meal")
	ErrPasswordRequired      = apperr.Validation("password_required", "password is required")
	ErrInvalidPassword       = apperr.Unauthenticated("invalid_password", "invalid password")
	ErrWorkHoursNotFound     = apperr.NotFound("work_hours_not_found", "no work hours recorded for the given dates")
)
