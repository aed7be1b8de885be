package timesheet

import (
	"math"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"09:00 AM", 9 * 60, true},
		{"9:05 am", 9*60 + 5, true},
		{"12:00 AM", 0, true},
		{"12:30 PM", 12*60 + 30, true},
		{"11:59 PM", 23*60 + 59, true},
		{" 05:30 pm ", 17*60 + 30, true},
		{"", 0, false},
		{"13:00 PM", 0, false},
		{"09:00", 0, false},
		{"nine", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseClock(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "12:00 AM"},
		{9 * 60, "09:00 AM"},
		{17*60 + 30, "05:30 PM"},
		{24*60 + 60, "01:00 AM"},
		{-60, "11:00 PM"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComputeHours(t *testing.T) {
	tests := []struct {
		name      string
		in, out   string
		wantHours float64
	}{
		{"same day", "09:00 AM", "05:30 PM", 8.5},
		{"overnight", "11:00 PM", "07:00 AM", 8},
		{"one minute", "09:00 AM", "09:01 AM", 1.0 / 60},
		{"equal", "09:00 AM", "09:00 AM", 0},
		{"lowercase", "9:00 am", "5:00 pm", 8},
		{"malformed in", "bogus", "05:00 PM", 0},
		{"malformed out", "09:00 AM", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeHours(tt.in, tt.out)
			if math.Abs(got-tt.wantHours) > 1e-9 {
				t.Errorf("ComputeHours(%q, %q) = %v, want %v", tt.in, tt.out, got, tt.wantHours)
			}
		})
	}
}

// Hours follow the clock strings alone, so shifts spanning a DST switch are
// paid by the wall clock.
func TestComputeHoursFollowsWallClock(t *testing.T) {
	tests := []struct {
		name    string
		in, out string
		want    float64
	}{
		{"spring-forward night", "01:00 AM", "05:00 AM", 4},
		{"fall-back overnight", "11:00 PM", "07:00 AM", 8},
	}
	for _, tt := range tests {
		if got := ComputeHours(tt.in, tt.out); got != tt.want {
			t.Errorf("%s: ComputeHours(%q, %q) = %v, want %v", tt.name, tt.in, tt.out, got, tt.want)
		}
	}
}

func TestComputeHoursFormula(t *testing.T) {
	for in := 0; in < minutesPerDay; in += 53 {
		for out := 0; out < minutesPerDay; out += 47 {
			want := float64(out-in) / 60
			switch {
			case out == in:
				want = 0
			case out < in:
				want = float64(out+minutesPerDay-in) / 60
			}
			if got := ComputeHours(FormatClock(in), FormatClock(out)); math.Abs(got-want) > 1e-9 {
				t.Fatalf("ComputeHours(%s, %s) = %v, want %v", FormatClock(in), FormatClock(out), got, want)
			}
		}
	}
}

func TestComputeHoursNeverNegative(t *testing.T) {
	for in := 0; in < 24*60; in += 37 {
		for out := 0; out < 24*60; out += 41 {
			h := ComputeHours(FormatClock(in), FormatClock(out))
			if h < 0 || h >= 24 {
				t.Fatalf("ComputeHours(%s, %s) = %v", FormatClock(in), FormatClock(out), h)
			}
		}
	}
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"monday", time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), monday},
		{"wednesday", time.Date(2024, 3, 6, 23, 59, 0, 0, time.UTC), monday},
		{"saturday", time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC), monday},
		{"sunday", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), monday},
		{"next monday", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), monday.AddDate(0, 0, 7)},
	}
	for _, tt := range tests {
		if got := WeekStart(tt.t); !got.Equal(tt.want) {
			t.Errorf("%s: WeekStart = %v, want %v", tt.name, got, tt.want)
		}
	}
}
