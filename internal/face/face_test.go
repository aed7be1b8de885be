package face

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/session"
	"github.com/your-org/timeclock/internal/storage"
)

const testDim = 4

type fakeSnapshots struct {
	puts    map[string][]byte
	deleted []string
}

func (f *fakeSnapshots) PutSnapshot(ctx context.Context, userID uuid.UUID, data []byte, contentType string) (string, error) {
	key := storage.SnapshotKey(userID, contentType)
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = data
	return key, nil
}

func (f *fakeSnapshots) DeleteSnapshot(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.puts, key)
	return nil
}

type env struct {
	store    *storage.MemoryStore
	sessions *session.Service
	svc      *Service
	snaps    *fakeSnapshots
}

func newEnv(t *testing.T, matcher func(*storage.MemoryStore) Matcher) *env {
	t.Helper()
	e := &env{store: storage.NewMemoryStore(), snaps: &fakeSnapshots{}}
	e.sessions = session.NewService(e.store, nil, time.UTC)
	if matcher == nil {
		matcher = func(s *storage.MemoryStore) Matcher { return NewLinearMatcher(s, DefaultThreshold) }
	}
	e.svc = NewService(e.store, matcher(e.store), e.sessions, Options{
		DescriptorLength: testDim,
		Snapshots:        e.snaps,
	})
	return e
}

func (e *env) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: models.RoleEmployee}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (e *env) register(t *testing.T, u *models.User, d []float32) {
	t.Helper()
	if _, err := e.svc.Register(context.Background(), u.ID, d, nil); err != nil {
		t.Fatalf("Register(%s): %v", u.Name, err)
	}
}

func TestEuclideanDistance(t *testing.T) {
	if d := EuclideanDistance([]float32{0, 0}, []float32{3, 4}); d != 5 {
		t.Errorf("distance = %v, want 5", d)
	}
	if d := EuclideanDistance([]float32{1}, []float32{1, 2}); !math.IsInf(d, 1) {
		t.Errorf("mismatched lengths = %v, want +Inf", d)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		d, want float64
	}{
		{0, 100},
		{0.25, 75},
		{1, 0},
		{1.5, 0},
	}
	for _, tt := range tests {
		if got := Confidence(tt.d); got != tt.want {
			t.Errorf("Confidence(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, nil)
	u := e.user(t, "ana")
	ctx := context.Background()

	tests := []struct {
		name string
		d    []float32
	}{
		{"too short", []float32{0, 0, 0}},
		{"too long", []float32{0, 0, 0, 0, 0}},
		{"nan", []float32{0, float32(math.NaN()), 0, 0}},
		{"inf", []float32{0, 0, float32(math.Inf(1)), 0}},
	}
	for _, tt := range tests {
		if _, err := e.svc.Register(ctx, u.ID, tt.d, nil); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	if _, err := e.svc.Register(ctx, uuid.New(), []float32{0, 0, 0, 0}, nil); !errors.Is(err, session.ErrUserNotFound) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestRegisterTwice(t *testing.T) {
	e := newEnv(t, nil)
	u := e.user(t, "ana")
	ctx := context.Background()
	original := []float32{0.1, 0.2, 0.3, 0.4}

	e.register(t, u, original)
	_, err := e.svc.Register(ctx, u.ID, []float32{0.9, 0.9, 0.9, 0.9}, nil)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrAlreadyRegistered", err)
	}

	faces, _ := e.store.ListFaceDescriptors(ctx)
	if len(faces) != 1 || faces[0].Descriptor[0] != original[0] {
		t.Errorf("stored descriptor changed: %+v", faces)
	}
}

func TestRegisterWithSnapshot(t *testing.T) {
	e := newEnv(t, nil)
	u := e.user(t, "ana")
	ctx := context.Background()

	got, err := e.svc.Register(ctx, u.ID, []float32{0, 0, 0, 0}, &Snapshot{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if got.FaceSnapshotKey == "" || e.snaps.puts[got.FaceSnapshotKey] == nil {
		t.Fatalf("snapshot not stored: key=%q", got.FaceSnapshotKey)
	}

	other := e.user(t, "bo")
	_, err = e.svc.Register(ctx, other.ID, []float32{0, 0, 0, 0}, &Snapshot{Data: []byte("gif"), ContentType: "image/gif"})
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("gif err = %v, want ErrUnsupportedImage", err)
	}
}

func TestIdentify(t *testing.T) {
	matchers := map[string]func(*storage.MemoryStore) Matcher{
		"linear": func(s *storage.MemoryStore) Matcher { return NewLinearMatcher(s, DefaultThreshold) },
		"index":  func(s *storage.MemoryStore) Matcher { return NewVectorIndexMatcher(s, DefaultThreshold) },
	}
	for name, mk := range matchers {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, mk)
			ctx := context.Background()
			ana := e.user(t, "ana")
			bo := e.user(t, "bo")
			e.register(t, ana, []float32{0, 0, 0, 0})
			e.register(t, bo, []float32{1, 1, 1, 1})

			id, err := e.svc.Identify(ctx, []float32{0, 0, 0, 0})
			if err != nil {
				t.Fatal(err)
			}
			if id.UserID != ana.ID || id.Confidence != 100 {
				t.Errorf("exact match = %+v", id)
			}

			id, err = e.svc.Identify(ctx, []float32{0.9, 1, 1, 1})
			if err != nil {
				t.Fatal(err)
			}
			if id.UserID != bo.ID {
				t.Errorf("near bo = %+v", id)
			}

			// Distance 0.6 from ana, 1.6+ from bo.
			if _, err := e.svc.Identify(ctx, []float32{0, 0, 0, -0.6}); !errors.Is(err, ErrNoMatch) {
				t.Errorf("at threshold err = %v, want ErrNoMatch", err)
			}
			if _, err := e.svc.Identify(ctx, []float32{-5, -5, -5, -5}); !errors.Is(err, ErrNoMatch) {
				t.Errorf("far err = %v, want ErrNoMatch", err)
			}
			if _, err := e.svc.Identify(ctx, []float32{0, 0}); err == nil {
				t.Error("expected validation error for short probe")
			}
		})
	}
}

func TestIdentifyEmptyRoster(t *testing.T) {
	e := newEnv(t, nil)
	if _, err := e.svc.Identify(context.Background(), []float32{0, 0, 0, 0}); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("err = %v, want ErrNoMatch", err)
	}
}

func TestIdentifyAmbiguousKeepsClosest(t *testing.T) {
	e := newEnv(t, nil)
	ana := e.user(t, "ana")
	bo := e.user(t, "bo")
	e.register(t, ana, []float32{0, 0, 0, 0})
	e.register(t, bo, []float32{0.2, 0, 0, 0})

	id, err := e.svc.Identify(context.Background(), []float32{0.05, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != ana.ID {
		t.Errorf("matched %s, want ana", id.Name)
	}
}

func TestFaceClockInOut(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	ana := e.user(t, "ana")
	e.register(t, ana, []float32{0.1, 0.1, 0.1, 0.1})
	probe := []float32{0.1, 0.1, 0.1, 0.12}

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	e.sessions.Now = func() time.Time { return now }

	res, err := e.svc.ClockIn(ctx, probe)
	if err != nil {
		t.Fatal(err)
	}
	if res.Identity.UserID != ana.ID || res.Clock.Record.ClockIn != "09:00 AM" {
		t.Fatalf("clock-in = %+v", res)
	}

	if _, err := e.svc.ClockIn(ctx, probe); !errors.Is(err, session.ErrAlreadyClockedInToday) {
		t.Fatalf("second clock-in err = %v", err)
	}

	now = now.Add(8 * time.Hour)
	res, err = e.svc.ClockOut(ctx, probe)
	if err != nil {
		t.Fatal(err)
	}
	if res.Clock.Record.Hours != 8 {
		t.Errorf("hours = %v, want 8", res.Clock.Record.Hours)
	}

	if _, err := e.svc.ClockIn(ctx, []float32{9, 9, 9, 9}); !errors.Is(err, ErrFaceNotRecognized) {
		t.Fatalf("stranger err = %v, want ErrFaceNotRecognized", err)
	}
}

type capturePublisher struct {
	events []models.AttendanceEvent
}

func (p *capturePublisher) PublishEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	p.events = append(p.events, *ev)
	return nil
}

func TestRegisterSnapshotWithoutStorage(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewService(store, NewLinearMatcher(store, DefaultThreshold), session.NewService(store, nil, time.UTC),
		Options{DescriptorLength: testDim})
	u := &models.User{Name: "ana", Email: "ana@example.com", Role: models.RoleEmployee}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Register(context.Background(), u.ID, []float32{0, 0, 0, 0},
		&Snapshot{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	if !errors.Is(err, ErrSnapshotsDisabled) {
		t.Fatalf("err = %v, want ErrSnapshotsDisabled", err)
	}
	faces, _ := store.ListFaceDescriptors(context.Background())
	if len(faces) != 0 {
		t.Errorf("descriptor stored despite rejected snapshot: %+v", faces)
	}

	if _, err := svc.Register(context.Background(), u.ID, []float32{0, 0, 0, 0}, nil); err != nil {
		t.Errorf("Register without snapshot: %v", err)
	}
}

func TestRegisterEventUsesServiceClock(t *testing.T) {
	store := storage.NewMemoryStore()
	pub := &capturePublisher{}
	svc := NewService(store, NewLinearMatcher(store, DefaultThreshold), session.NewService(store, nil, time.UTC),
		Options{DescriptorLength: testDim, Publisher: pub})
	at := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	svc.Now = func() time.Time { return at }

	u := &models.User{Name: "ana", Email: "ana@example.com", Role: models.RoleEmployee}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(context.Background(), u.ID, []float32{0, 0, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != models.EventFaceRegistered || !ev.Timestamp.Equal(at) {
		t.Errorf("event = %+v, want face_registered at %v", ev, at)
	}
}
