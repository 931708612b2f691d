package workshift

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalize_Defaults(t *testing.T) {
	w := Workshift{
		DoctorID:  uuid.New(),
		ClinicID:  uuid.New(),
		StartDate: time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC),
	}
	if err := w.Normalize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ID == uuid.Nil {
		t.Error("expected generated ID")
	}
	if w.Duration != DefaultDuration {
		t.Errorf("Duration = %d, want %d", w.Duration, DefaultDuration)
	}
	if want := time.Date(2026, 10, 20, 17, 0, 0, 0, time.UTC); !w.EffectiveEnd().Equal(want) {
		t.Errorf("EffectiveEnd = %s, want %s", w.EffectiveEnd(), want)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		w    Workshift
		want error
	}{
		{"short", Workshift{DoctorID: uuid.New(), ClinicID: uuid.New(), StartDate: start, Duration: 59}, ErrInvalidDuration},
		{"no doctor", Workshift{ClinicID: uuid.New(), StartDate: start}, ErrMissingOwner},
		{"no start", Workshift{DoctorID: uuid.New(), ClinicID: uuid.New()}, ErrMissingStart},
	}

	for _, tt := range tests {
		w := tt.w
		if err := w.Normalize(); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestEffectiveEndIgnoresEndDate(t *testing.T) {
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	informational := start.Add(10 * time.Hour)
	w := Workshift{StartDate: start, Duration: 240, EndDate: &informational}

	if want := start.Add(4 * time.Hour); !w.EffectiveEnd().Equal(want) {
		t.Errorf("EffectiveEnd = %s, want %s", w.EffectiveEnd(), want)
	}
}

func TestOverlaps(t *testing.T) {
	dayStart := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(2026, 10, 20, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	tests := []struct {
		name  string
		start time.Time
		dur   int
		want  bool
	}{
		{"inside day", time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), 240, true},
		{"overnight from previous day", time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC), 240, true},
		{"ends at midnight before", time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC), 240, false},
		{"next day", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), 60, false},
	}

	for _, tt := range tests {
		w := Workshift{StartDate: tt.start, Duration: tt.dur}
		if got := w.Overlaps(dayStart, dayEnd); got != tt.want {
			t.Errorf("%s: Overlaps = %v, want %v", tt.name, got, tt.want)
		}
	}
}
