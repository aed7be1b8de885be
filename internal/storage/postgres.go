package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the extension, tables and indexes if they do not
// exist. descriptorLength fixes the dimension of users.face_descriptor.
func (s *PostgresStore) EnsureSchema(ctx context.Context, descriptorLength int) error {
	ddl := strings.ReplaceAll(schemaSQL, "{{DESCRIPTOR_LENGTH}}", strconv.Itoa(descriptorLength))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// mapConflict translates unique violations into the package sentinels.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return ErrEmailTaken
	case "work_hours_user_day_key":
		return ErrWorkDayExists
	case "work_hours_one_open_idx":
		return ErrOpenSessionExists
	case "breaks_one_active_idx":
		return ErrActiveBreakExists
	}
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Users ---

const userColumns = `id, name, email, role, password_hash, face_descriptor IS NOT NULL,
	face_snapshot_key, clock_status, break_status, break_type, totp_secret, totp_enabled,
	created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.FaceRegistered,
		&u.FaceSnapshotKey, &u.ClockStatus, &u.BreakStatus, &u.BreakType, &u.TOTPSecret, &u.TOTPEnabled,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.ClockStatus == "" {
		u.ClockStatus = models.ClockStatusOut
	}
	if u.BreakStatus == "" {
		u.BreakStatus = models.BreakStatusNone
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, role, password_hash, clock_status, break_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Role, u.PasswordHash, u.ClockStatus, u.BreakStatus,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapConflict(err))
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) SetClockStatus(ctx context.Context, id uuid.UUID, status models.ClockStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET clock_status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("set clock status: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetBreakStatus(ctx context.Context, id uuid.UUID, status models.BreakStatus, breakType models.BreakType) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET break_status = $1, break_type = $2, updated_at = now() WHERE id = $3`,
		status, breakType, id)
	if err != nil {
		return fmt.Errorf("set break status: %w", err)
	}
	return nil
}

// SetFaceDescriptor stores the descriptor only if none is set yet and
// reports whether the write happened.
func (s *PostgresStore) SetFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, snapshotKey string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET face_descriptor = $1, face_snapshot_key = $2, updated_at = now()
		 WHERE id = $3 AND face_descriptor IS NULL`,
		pgvector.NewVector(descriptor), snapshotKey, id)
	if err != nil {
		return false, fmt.Errorf("set face descriptor: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListFaceDescriptors(ctx context.Context) ([]models.FaceDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, face_descriptor FROM users WHERE face_descriptor IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list face descriptors: %w", err)
	}
	defer rows.Close()

	var out []models.FaceDescriptor
	for rows.Next() {
		var fd models.FaceDescriptor
		var vec pgvector.Vector
		if err := rows.Scan(&fd.UserID, &fd.Name, &fd.Role, &vec); err != nil {
			return nil, fmt.Errorf("scan face descriptor: %w", err)
		}
		fd.Descriptor = vec.Slice()
		out = append(out, fd)
	}
	return out, rows.Err()
}

// NearestFaceDescriptors returns the k stored descriptors closest to probe by
// Euclidean (L2) distance, closest first.
func (s *PostgresStore) NearestFaceDescriptors(ctx context.Context, probe []float32, k int) ([]models.FaceCandidate, error) {
	if k <= 0 {
		k = 1
	}
	vec := pgvector.NewVector(probe)
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, face_descriptor <-> $1 AS distance
		 FROM users
		 WHERE face_descriptor IS NOT NULL
		 ORDER BY face_descriptor <-> $1
		 LIMIT $2`,
		vec, k)
	if err != nil {
		return nil, fmt.Errorf("nearest face descriptors: %w", err)
	}
	defer rows.Close()

	var out []models.FaceCandidate
	for rows.Next() {
		var c models.FaceCandidate
		if err := rows.Scan(&c.UserID, &c.Name, &c.Role, &c.Distance); err != nil {
			return nil, fmt.Errorf("scan face candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = false, updated_at = now() WHERE id = $2`, secret, id)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnableTOTP(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET totp_enabled = true, updated_at = now() WHERE id = $1 AND totp_secret <> ''`, id)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	return nil
}

// --- Work hours ---

const workHoursColumns = `id, user_id, work_date, clock_in, clock_out, hours, created_at, updated_at`

func scanWorkHours(row pgx.Row) (*models.WorkHours, error) {
	wh := &models.WorkHours{}
	var clockOut *string
	if err := row.Scan(&wh.ID, &wh.UserID, &wh.Date, &wh.ClockIn, &clockOut, &wh.Hours, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
		return nil, err
	}
	if clockOut != nil {
		wh.ClockOut = *clockOut
	}
	wh.Date = models.Day(wh.Date)
	return wh, nil
}

func (s *PostgresStore) GetWorkHoursByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.WorkHours, error) {
	wh, err := scanWorkHours(s.pool.QueryRow(ctx,
		`SELECT `+workHoursColumns+` FROM work_hours WHERE user_id = $1 AND work_date = $2`,
		userID, models.Day(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get work hours: %w", err)
	}
	return wh, nil
}

// FindOpenWorkHours returns the user's open session regardless of its date.
func (s *PostgresStore) FindOpenWorkHours(ctx context.Context, userID uuid.UUID) (*models.WorkHours, error) {
	wh, err := scanWorkHours(s.pool.QueryRow(ctx,
		`SELECT `+workHoursColumns+` FROM work_hours
		 WHERE user_id = $1 AND clock_out IS NULL
		 ORDER BY work_date DESC LIMIT 1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open work hours: %w", err)
	}
	return wh, nil
}

// InsertWorkHours relies on work_hours_user_day_key and
// work_hours_one_open_idx to reject a second session atomically.
func (s *PostgresStore) InsertWorkHours(ctx context.Context, wh *models.WorkHours) error {
	if wh.ID == uuid.Nil {
		wh.ID = uuid.New()
	}
	wh.Date = models.Day(wh.Date)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO work_hours (id, user_id, work_date, clock_in, clock_out, hours)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		wh.ID, wh.UserID, wh.Date, wh.ClockIn, nullString(wh.ClockOut), wh.Hours,
	).Scan(&wh.CreatedAt, &wh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert work hours: %w", mapConflict(err))
	}
	return nil
}

// CloseWorkHours sets the clock-out only if the session is still open.
func (s *PostgresStore) CloseWorkHours(ctx context.Context, id uuid.UUID, clockOut string, hours float64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE work_hours SET clock_out = $1, hours = $2, updated_at = now()
		 WHERE id = $3 AND clock_out IS NULL`,
		clockOut, hours, id)
	if err != nil {
		return false, fmt.Errorf("close work hours: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertWorkHours replaces the (user, day) record or creates it.
func (s *PostgresStore) UpsertWorkHours(ctx context.Context, wh *models.WorkHours) error {
	wh.Date = models.Day(wh.Date)
	row := s.pool.QueryRow(ctx,
		`INSERT INTO work_hours (id, user_id, work_date, clock_in, clock_out, hours)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT ON CONSTRAINT work_hours_user_day_key DO UPDATE
		   SET clock_in = EXCLUDED.clock_in,
		       clock_out = EXCLUDED.clock_out,
		       hours = EXCLUDED.hours,
		       updated_at = now()
		 RETURNING `+workHoursColumns,
		uuid.New(), wh.UserID, wh.Date, wh.ClockIn, nullString(wh.ClockOut), wh.Hours)
	saved, err := scanWorkHours(row)
	if err != nil {
		return fmt.Errorf("upsert work hours: %w", mapConflict(err))
	}
	*wh = *saved
	return nil
}

func (s *PostgresStore) DeleteWorkHours(ctx context.Context, userID uuid.UUID, dates []time.Time) (int64, error) {
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, models.Day(d))
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM work_hours WHERE user_id = $1 AND work_date = ANY($2::date[])`, userID, days)
	if err != nil {
		return 0, fmt.Errorf("delete work hours: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListWorkHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.WorkHours, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workHoursColumns+` FROM work_hours
		 WHERE user_id = $1 AND work_date BETWEEN $2 AND $3
		 ORDER BY work_date`,
		userID, models.Day(from), models.Day(to))
	if err != nil {
		return nil, fmt.Errorf("list work hours: %w", err)
	}
	defer rows.Close()

	var out []models.WorkHours
	for rows.Next() {
		wh, err := scanWorkHours(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work hours: %w", err)
		}
		out = append(out, *wh)
	}
	return out, rows.Err()
}

// --- Breaks ---

// InsertBreak relies on breaks_one_active_idx to reject a second active break.
func (s *PostgresStore) InsertBreak(ctx context.Context, b *models.Break) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Active = true
	_, err := s.pool.Exec(ctx,
		`INSERT INTO breaks (id, user_id, type, started_at, active) VALUES ($1, $2, $3, $4, true)`,
		b.ID, b.UserID, b.Type, b.StartedAt)
	if err != nil {
		return fmt.Errorf("insert break: %w", mapConflict(err))
	}
	return nil
}

const breakColumns = `id, user_id, type, started_at, ended_at, duration_minutes, active`

func scanBreak(row pgx.Row) (*models.Break, error) {
	b := &models.Break{}
	if err := row.Scan(&b.ID, &b.UserID, &b.Type, &b.StartedAt, &b.EndedAt, &b.DurationMinutes, &b.Active); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) FindActiveBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (*models.Break, error) {
	b, err := scanBreak(s.pool.QueryRow(ctx,
		`SELECT `+breakColumns+` FROM breaks WHERE user_id = $1 AND type = $2 AND active`,
		userID, breakType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active break: %w", err)
	}
	return b, nil
}

// CloseBreak ends the break only if it is still active.
func (s *PostgresStore) CloseBreak(ctx context.Context, id uuid.UUID, endedAt time.Time, minutes int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE breaks SET active = false, ended_at = $1, duration_minutes = $2 WHERE id = $3 AND active`,
		endedAt, minutes, id)
	if err != nil {
		return false, fmt.Errorf("close break: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListClosedBreaks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Break, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+breakColumns+` FROM breaks
		 WHERE user_id = $1 AND NOT active AND started_at >= $2 AND started_at < $3
		 ORDER BY started_at`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var out []models.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan break: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// --- Attendance events ---

// InsertAttendanceEvent is idempotent on the event id so redelivered
// messages do not duplicate the audit trail.
func (s *PostgresStore) InsertAttendanceEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_events (id, user_id, user_name, type, method, timestamp, present, hours, break_type, break_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.UserID, ev.UserName, ev.Type, ev.Method, ev.Timestamp,
		ev.Present, ev.Hours, ev.BreakType, ev.BreakMinutes)
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendanceEvents(ctx context.Context, userID *uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, user_id, user_name, type, method, timestamp, present, hours, break_type, break_minutes
		FROM attendance_events`
	args := []interface{}{}
	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance events: %w", err)
	}
	defer rows.Close()

	var out []models.AttendanceEvent
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.UserName, &ev.Type, &ev.Method, &ev.Timestamp,
			&ev.Present, &ev.Hours, &ev.BreakType, &ev.BreakMinutes); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
