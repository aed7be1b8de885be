package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

// Store is the persistence contract shared by PostgresStore and
// MemoryStore. Getters return nil, nil when nothing matches.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetClockStatus(ctx context.Context, id uuid.UUID, status models.ClockStatus) error
	SetBreakStatus(ctx context.Context, id uuid.UUID, status models.BreakStatus, breakType models.BreakType) error
	SetFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, snapshotKey string) (bool, error)
	ListFaceDescriptors(ctx context.Context) ([]models.FaceDescriptor, error)
	NearestFaceDescriptors(ctx context.Context, probe []float32, k int) ([]models.FaceCandidate, error)
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, id uuid.UUID) error

	GetWorkHoursByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.WorkHours, error)
	FindOpenWorkHours(ctx context.Context, userID uuid.UUID) (*models.WorkHours, error)
	InsertWorkHours(ctx context.Context, wh *models.WorkHours) error
	CloseWorkHours(ctx context.Context, id uuid.UUID, clockOut string, hours float64) (bool, error)
	UpsertWorkHours(ctx context.Context, wh *models.WorkHours) error
	DeleteWorkHours(ctx context.Context, userID uuid.UUID, dates []time.Time) (int64, error)
	ListWorkHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.WorkHours, error)

	InsertBreak(ctx context.Context, b *models.Break) error
	FindActiveBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (*models.Break, error)
	CloseBreak(ctx context.Context, id uuid.UUID, endedAt time.Time, minutes int) (bool, error)
	ListClosedBreaks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Break, error)

	InsertAttendanceEvent(ctx context.Context, ev *models.AttendanceEvent) error
	ListAttendanceEvents(ctx context.Context, userID *uuid.UUID, limit int) ([]models.AttendanceEvent, error)
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
