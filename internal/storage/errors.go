package storage

import "errors"

// Conflicts reported by the conditional writes. Both stores enforce the same
// uniqueness rules so callers can rely on them instead of read-then-write
// checks.
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrWorkDayExists     = errors.New("work hours already recorded for this day")
	ErrOpenSessionExists = errors.New("an open work session already exists")
	ErrActiveBreakExists = errors.New("an active break already exists")
)
