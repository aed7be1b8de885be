package storage

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

// MemoryStore keeps everything in process memory behind a single mutex. It
// enforces the same uniqueness rules as the Postgres schema and backs the
// test suite and `database.driver: memory`.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	faces     map[uuid.UUID][]float32
	workHours map[uuid.UUID]*models.WorkHours
	breaks    map[uuid.UUID]*models.Break
	events    []models.AttendanceEvent
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uuid.UUID]*models.User),
		faces:     make(map[uuid.UUID][]float32),
		workHours: make(map[uuid.UUID]*models.WorkHours),
		breaks:    make(map[uuid.UUID]*models.Break),
		now:       time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() {}

// --- Users ---

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.ClockStatus == "" {
		u.ClockStatus = models.ClockStatusOut
	}
	if u.BreakStatus == "" {
		u.BreakStatus = models.BreakStatusNone
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	u.FaceRegistered = false
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *MemoryStore) SetClockStatus(ctx context.Context, id uuid.UUID, status models.ClockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.ClockStatus = status
		u.UpdatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) SetBreakStatus(ctx context.Context, id uuid.UUID, status models.BreakStatus, breakType models.BreakType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.BreakStatus = status
		u.BreakType = breakType
		u.UpdatedAt = s.now()
	}
	return nil
}

// SetFaceDescriptor stores the descriptor only if none is set yet.
func (s *MemoryStore) SetFaceDescriptor(ctx context.Context, id uuid.UUID, descriptor []float32, snapshotKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.FaceRegistered {
		return false, nil
	}
	s.faces[id] = append([]float32(nil), descriptor...)
	u.FaceRegistered = true
	u.FaceSnapshotKey = snapshotKey
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) ListFaceDescriptors(ctx context.Context) ([]models.FaceDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.FaceDescriptor
	for id, desc := range s.faces {
		u := s.users[id]
		out = append(out, models.FaceDescriptor{
			UserID:     u.ID,
			Name:       u.Name,
			Role:       u.Role,
			Descriptor: append([]float32(nil), desc...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID.String() < out[j].UserID.String() })
	return out, nil
}

// NearestFaceDescriptors ranks stored descriptors by Euclidean distance to
// probe, the same ordering the Postgres store gets from the <-> operator.
func (s *MemoryStore) NearestFaceDescriptors(ctx context.Context, probe []float32, k int) ([]models.FaceCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k <= 0 {
		k = 1
	}
	out := make([]models.FaceCandidate, 0, len(s.faces))
	for id, desc := range s.faces {
		if len(desc) != len(probe) {
			continue
		}
		var sum float64
		for i := range desc {
			d := float64(desc[i]) - float64(probe[i])
			sum += d * d
		}
		u := s.users[id]
		out = append(out, models.FaceCandidate{UserID: u.ID, Name: u.Name, Role: u.Role, Distance: math.Sqrt(sum)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *MemoryStore) SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.TOTPSecret = secret
		u.TOTPEnabled = false
	}
	return nil
}

func (s *MemoryStore) EnableTOTP(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.TOTPEnabled = true
	}
	return nil
}

// --- Work hours ---

func (s *MemoryStore) GetWorkHoursByDate(ctx context.Context, userID uuid.UUID, date time.Time) (*models.WorkHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := models.Day(date)
	for _, wh := range s.workHours {
		if wh.UserID == userID && wh.Date.Equal(day) {
			c := *wh
			return &c, nil
		}
	}
	return nil, nil
}

// FindOpenWorkHours returns the user's open session regardless of its date.
func (s *MemoryStore) FindOpenWorkHours(ctx context.Context, userID uuid.UUID) (*models.WorkHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.WorkHours
	for _, wh := range s.workHours {
		if wh.UserID == userID && wh.Open() {
			if found == nil || wh.Date.After(found.Date) {
				found = wh
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (s *MemoryStore) InsertWorkHours(ctx context.Context, wh *models.WorkHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh.Date = models.Day(wh.Date)
	if err := s.checkWorkHoursLocked(wh, uuid.Nil); err != nil {
		return err
	}
	if wh.ID == uuid.Nil {
		wh.ID = uuid.New()
	}
	wh.CreatedAt = s.now()
	wh.UpdatedAt = wh.CreatedAt
	c := *wh
	s.workHours[wh.ID] = &c
	return nil
}

// CloseWorkHours sets the clock-out only if the session is still open.
func (s *MemoryStore) CloseWorkHours(ctx context.Context, id uuid.UUID, clockOut string, hours float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh, ok := s.workHours[id]
	if !ok || !wh.Open() {
		return false, nil
	}
	wh.ClockOut = clockOut
	wh.Hours = hours
	wh.UpdatedAt = s.now()
	return true, nil
}

// UpsertWorkHours replaces the (user, day) record or creates it.
func (s *MemoryStore) UpsertWorkHours(ctx context.Context, wh *models.WorkHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh.Date = models.Day(wh.Date)
	var existing *models.WorkHours
	for _, cur := range s.workHours {
		if cur.UserID == wh.UserID && cur.Date.Equal(wh.Date) {
			existing = cur
			break
		}
	}
	if existing == nil {
		if err := s.checkWorkHoursLocked(wh, uuid.Nil); err != nil {
			return err
		}
		wh.ID = uuid.New()
		wh.CreatedAt = s.now()
		wh.UpdatedAt = wh.CreatedAt
		c := *wh
		s.workHours[wh.ID] = &c
		return nil
	}

	if err := s.checkWorkHoursLocked(wh, existing.ID); err != nil {
		return err
	}
	existing.ClockIn = wh.ClockIn
	existing.ClockOut = wh.ClockOut
	existing.Hours = wh.Hours
	existing.UpdatedAt = s.now()
	*wh = *existing
	return nil
}

func (s *MemoryStore) DeleteWorkHours(ctx context.Context, userID uuid.UUID, dates []time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		want[models.Day(d)] = true
	}
	var n int64
	for id, wh := range s.workHours {
		if wh.UserID == userID && want[wh.Date] {
			delete(s.workHours, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListWorkHours(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.WorkHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to = models.Day(from), models.Day(to)
	var out []models.WorkHours
	for _, wh := range s.workHours {
		if wh.UserID != userID || wh.Date.Before(from) || wh.Date.After(to) {
			continue
		}
		out = append(out, *wh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// checkWorkHoursLocked mirrors the (user_id, work_date) unique constraint and
// the one-open-session partial index. skip excludes the row being updated.
func (s *MemoryStore) checkWorkHoursLocked(wh *models.WorkHours, skip uuid.UUID) error {
	for _, cur := range s.workHours {
		if cur.ID == skip || cur.UserID != wh.UserID {
			continue
		}
		if cur.Date.Equal(wh.Date) {
			return ErrWorkDayExists
		}
		if wh.Open() && cur.Open() {
			return ErrOpenSessionExists
		}
	}
	return nil
}

// --- Breaks ---

func (s *MemoryStore) InsertBreak(ctx context.Context, b *models.Break) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.breaks {
		if cur.UserID == b.UserID && cur.Active {
			return ErrActiveBreakExists
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.Active = true
	c := *b
	s.breaks[b.ID] = &c
	return nil
}

func (s *MemoryStore) FindActiveBreak(ctx context.Context, userID uuid.UUID, breakType models.BreakType) (*models.Break, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.breaks {
		if b.UserID == userID && b.Active && b.Type == breakType {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

// CloseBreak ends the break only if it is still active.
func (s *MemoryStore) CloseBreak(ctx context.Context, id uuid.UUID, endedAt time.Time, minutes int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breaks[id]
	if !ok || !b.Active {
		return false, nil
	}
	b.Active = false
	b.EndedAt = &endedAt
	b.DurationMinutes = &minutes
	return true, nil
}

func (s *MemoryStore) ListClosedBreaks(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Break, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Break
	for _, b := range s.breaks {
		if b.UserID != userID || b.Active {
			continue
		}
		if b.StartedAt.Before(from) || !b.StartedAt.Before(to) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// --- Attendance events ---

func (s *MemoryStore) InsertAttendanceEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.events {
		if cur.ID == ev.ID {
			return nil
		}
	}
	s.events = append(s.events, *ev)
	return nil
}

func (s *MemoryStore) ListAttendanceEvents(ctx context.Context, userID *uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []models.AttendanceEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if userID != nil && s.events[i].UserID != *userID {
			continue
		}
		out = append(out, s.events[i])
	}
	return out, nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}
