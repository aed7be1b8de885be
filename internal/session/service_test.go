package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/auth"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/timesheet"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AttendanceEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store *storage.MemoryStore
	svc   *Service
	pub   *recordingPublisher
	user  *models.User
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: storage.NewMemoryStore(),
		pub:   &recordingPublisher{},
		now:   time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), // Monday
	}
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	f.user = &models.User{Name: "Ana", Email: "ana@example.com", Role: models.RoleEmployee, PasswordHash: hash}
	if err := f.store.CreateUser(context.Background(), f.user); err != nil {
		t.Fatal(err)
	}
	f.svc = NewService(f.store, f.pub, time.UTC)
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) at(hour, min int) {
	y, m, d := f.now.Date()
	f.now = time.Date(y, m, d, hour, min, 0, 0, time.UTC)
}

func (f *fixture) nextDay() {
	f.now = f.now.AddDate(0, 0, 1)
}

func (f *fixture) reload(t *testing.T) *models.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), f.user.ID)
	if err != nil || u == nil {
		t.Fatalf("GetUser: %v, %v", u, err)
	}
	return u
}

func TestClockInThenOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.ClockIn != "09:00 AM" || !res.Record.Open() {
		t.Fatalf("record = %+v", res.Record)
	}
	if u := f.reload(t); u.ClockStatus != models.ClockStatusIn || !u.Present() {
		t.Fatalf("after clock-in: %+v", u)
	}

	f.at(17, 30)
	res, err = f.svc.ClockOut(ctx, f.user.ID, models.MethodFace)
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.ClockOut != "05:30 PM" || res.Record.Hours != 8.5 {
		t.Fatalf("record = %+v", res.Record)
	}
	if u := f.reload(t); u.ClockStatus != models.ClockStatusOut || u.Present() {
		t.Fatalf("after clock-out: %+v", u)
	}

	got := f.pub.types()
	if len(got) != 2 || got[0] != models.EventClockIn || got[1] != models.EventClockOut {
		t.Errorf("events = %v", got)
	}
}

func TestClockInTwiceSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); err != nil {
		t.Fatal(err)
	}
	f.at(10, 0)
	_, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	if !errors.Is(err, ErrAlreadyClockedInToday) {
		t.Fatalf("err = %v, want ErrAlreadyClockedInToday", err)
	}

	if u := f.reload(t); u.ClockStatus != models.ClockStatusIn {
		t.Errorf("clock status = %s, want in", u.ClockStatus)
	}
	records, _ := f.store.ListWorkHours(ctx, f.user.ID, f.now, f.now)
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

func TestClockInAfterClosedSessionToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	f.at(12, 0)
	f.svc.ClockOut(ctx, f.user.ID, models.MethodFace)

	f.at(13, 0)
	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); !errors.Is(err, ErrAlreadyClockedInToday) {
		t.Fatalf("err = %v, want ErrAlreadyClockedInToday", err)
	}
}

func TestClockInWithOpenSessionFromPreviousDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	f.nextDay()
	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); !errors.Is(err, ErrAlreadyClockedIn) {
		t.Fatalf("err = %v, want ErrAlreadyClockedIn", err)
	}
}

func TestClockOutErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.ClockOut(ctx, uuid.New(), models.MethodFace); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("not clocked in", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.ClockOut(ctx, f.user.ID, models.MethodFace); !errors.Is(err, ErrNotClockedIn) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("on break", func(t *testing.T) {
		f := newFixture(t)
		f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
		f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeShort)
		if _, err := f.svc.ClockOut(ctx, f.user.ID, models.MethodFace); !errors.Is(err, ErrOnBreak) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("status in without session", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetClockStatus(ctx, f.user.ID, models.ClockStatusIn)
		if _, err := f.svc.ClockOut(ctx, f.user.ID, models.MethodFace); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestOvernightShift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.at(23, 0)
	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); err != nil {
		t.Fatal(err)
	}
	f.nextDay()
	f.at(7, 0)
	res, err := f.svc.ClockOut(ctx, f.user.ID, models.MethodFace)
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Hours != 8.0 {
		t.Errorf("hours = %v, want 8", res.Record.Hours)
	}
	if !res.Record.Date.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("record date = %v, want the clock-in day", res.Record.Date)
	}
}

func TestWorkdayWithBreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)

	f.at(12, 0)
	if _, err := f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeShort); err != nil {
		t.Fatal(err)
	}
	if u := f.reload(t); u.Present() {
		t.Error("user present during break")
	}
	f.at(12, 15)
	br, err := f.svc.EndBreak(ctx, f.user.ID, models.BreakTypeShort)
	if err != nil {
		t.Fatal(err)
	}
	if *br.Break.DurationMinutes != 15 {
		t.Errorf("break minutes = %d, want 15", *br.Break.DurationMinutes)
	}
	if u := f.reload(t); !u.Present() {
		t.Error("user not present after break")
	}

	f.at(17, 30)
	res, err := f.svc.ClockOut(ctx, f.user.ID, models.MethodFace)
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.ClockIn != "09:00 AM" || res.Record.ClockOut != "05:30 PM" || res.Record.Hours != 8.5 {
		t.Fatalf("record = %+v", res.Record)
	}
	if res.BreakMinutes != 15 || res.ActualHours != 8.25 {
		t.Errorf("summary = %d min, %v h; want 15 min, 8.25 h", res.BreakMinutes, res.ActualHours)
	}

	sheet := timesheet.NewService(f.store, time.UTC)
	sheet.Now = func() time.Time { return f.now }
	week, err := sheet.WeeklyBreakdown(ctx, f.user.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	monday := week.Days[0]
	if monday.TotalHours != 8.5 || monday.BreakHours != 0.25 || monday.ActualWorkingHours != 8.25 {
		t.Errorf("monday = %+v", monday)
	}
}

func TestBreakTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeMeal); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeMeal); !errors.Is(err, ErrBreakAlreadyActive) {
		t.Fatalf("second start err = %v", err)
	}
	if _, err := f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeShort); !errors.Is(err, ErrBreakAlreadyActive) {
		t.Fatalf("parallel type err = %v", err)
	}
	if _, err := f.svc.EndBreak(ctx, f.user.ID, models.BreakTypeShort); !errors.Is(err, ErrNoActiveBreak) {
		t.Fatalf("end wrong type err = %v", err)
	}

	f.at(9, 30)
	if _, err := f.svc.EndBreak(ctx, f.user.ID, models.BreakTypeMeal); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.EndBreak(ctx, f.user.ID, models.BreakTypeMeal); !errors.Is(err, ErrNoActiveBreak) {
		t.Fatalf("second end err = %v", err)
	}

	if _, err := f.svc.StartBreak(ctx, f.user.ID, "nap"); !errors.Is(err, ErrInvalidBreakType) {
		t.Fatalf("invalid type err = %v", err)
	}
}

func TestBreakMinutes(t *testing.T) {
	start := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want int
	}{
		{start, 0},
		{start.Add(-time.Minute), 0},
		{start.Add(29 * time.Second), 0},
		{start.Add(30 * time.Second), 1},
		{start.Add(15*time.Minute + 10*time.Second), 15},
	}
	for _, tt := range tests {
		if got := BreakMinutes(start, tt.end); got != tt.want {
			t.Errorf("BreakMinutes(+%v) = %d, want %d", tt.end.Sub(start), got, tt.want)
		}
	}
}

func TestPasswordFlows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.ClockInWithPassword(ctx, f.user.ID, ""); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("empty password err = %v", err)
	}
	if _, err := f.svc.ClockInWithPassword(ctx, f.user.ID, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := f.svc.ClockInWithPassword(ctx, f.user.ID, "hunter2"); err != nil {
		t.Fatal(err)
	}

	f.at(17, 0)
	if _, err := f.svc.ClockOutWithPassword(ctx, f.user.ID, "wrong", false); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password err = %v", err)
	}
	res, err := f.svc.ClockOutWithPassword(ctx, f.user.ID, "", true)
	if err != nil {
		t.Fatalf("summary clock-out: %v", err)
	}
	if res.Record.Hours != 8 {
		t.Errorf("hours = %v, want 8", res.Record.Hours)
	}

	f.pub.mu.Lock()
	last := f.pub.events[len(f.pub.events)-1]
	f.pub.mu.Unlock()
	if last.Method != models.MethodSelf {
		t.Errorf("summary clock-out method = %s, want self", last.Method)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pub.err = errors.New("nats down")

	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
}

func TestEditWorkHours(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	wh, err := f.svc.EditWorkHours(ctx, f.user.ID, day, "9:00 am", "05:00 PM", nil)
	if err != nil {
		t.Fatal(err)
	}
	if wh.ClockIn != "09:00 AM" || wh.Hours != 8 {
		t.Fatalf("record = %+v", wh)
	}

	override := 7.5
	wh, err = f.svc.EditWorkHours(ctx, f.user.ID, day, "09:00 AM", "05:00 PM", &override)
	if err != nil {
		t.Fatal(err)
	}
	if wh.Hours != 7.5 {
		t.Errorf("hours = %v, want override 7.5", wh.Hours)
	}

	if _, err := f.svc.EditWorkHours(ctx, f.user.ID, day, "25:00", "05:00 PM", nil); err == nil {
		t.Error("expected validation error for bad clock-in")
	}
	negative := -1.0
	if _, err := f.svc.EditWorkHours(ctx, f.user.ID, day, "09:00 AM", "05:00 PM", &negative); err == nil {
		t.Error("expected validation error for negative hours")
	}
}

func TestEditClosesOpenSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	if _, err := f.svc.EditWorkHours(ctx, f.user.ID, f.now, "09:00 AM", "04:00 PM", nil); err != nil {
		t.Fatal(err)
	}
	if u := f.reload(t); u.ClockStatus != models.ClockStatusOut {
		t.Errorf("clock status = %s, want out", u.ClockStatus)
	}
}

func TestDeleteWorkHours(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, -1)
	f.svc.EditWorkHours(ctx, f.user.ID, d1, "09:00 AM", "05:00 PM", nil)
	f.svc.EditWorkHours(ctx, f.user.ID, d2, "09:00 AM", "05:00 PM", nil)

	n, err := f.svc.DeleteWorkHours(ctx, f.user.ID, d1, d2)
	if err != nil || n != 2 {
		t.Fatalf("DeleteWorkHours = %d, %v; want 2", n, err)
	}
	if _, err := f.svc.DeleteWorkHours(ctx, f.user.ID, d1); !errors.Is(err, ErrWorkHoursNotFound) {
		t.Fatalf("err = %v, want ErrWorkHoursNotFound", err)
	}
	if _, err := f.svc.DeleteWorkHours(ctx, f.user.ID); err == nil {
		t.Fatal("expected validation error for no dates")
	}
}

func TestDeleteOpenSessionResetsStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	if _, err := f.svc.DeleteWorkHours(ctx, f.user.ID, f.now); err != nil {
		t.Fatal(err)
	}
	if u := f.reload(t); u.ClockStatus != models.ClockStatusOut {
		t.Errorf("clock status = %s, want out", u.ClockStatus)
	}
	if _, err := f.svc.ClockIn(ctx, f.user.ID, models.MethodFace); err != nil {
		t.Fatalf("clock in after delete: %v", err)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st, err := f.svc.Status(ctx, f.user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Present || st.OpenSession != nil {
		t.Fatalf("initial status = %+v", st)
	}

	f.svc.ClockIn(ctx, f.user.ID, models.MethodFace)
	f.svc.StartBreak(ctx, f.user.ID, models.BreakTypeMeal)
	st, _ = f.svc.Status(ctx, f.user.ID)
	if st.Present || st.BreakType != models.BreakTypeMeal || st.OpenSession == nil {
		t.Fatalf("on break status = %+v", st)
	}
}
