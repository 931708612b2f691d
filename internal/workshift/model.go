package workshift

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDuration = 480 // 8 hours
	MinDuration     = 60
)

var (
	ErrInvalidDuration = fmt.Errorf("workshift duration must be at least %d minutes", MinDuration)
	ErrMissingOwner    = errors.New("workshift doctorId and clinicId are required")
	ErrMissingStart    = errors.New("workshift startDate is required")
)

// Workshift is a locally replicated doctor availability window. Records are
// only written by the sync consumer.
type Workshift struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	ClinicID  uuid.UUID
	StartDate time.Time
	Duration  int
	EndDate   *time.Time // informational, never used for scheduling
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize fills defaults and checks the record before it reaches the replica.
func (w *Workshift) Normalize() error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Duration == 0 {
		w.Duration = DefaultDuration
	}
	if w.DoctorID == uuid.Nil || w.ClinicID == uuid.Nil {
		return ErrMissingOwner
	}
	if w.StartDate.IsZero() {
		return ErrMissingStart
	}
	if w.Duration < MinDuration {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, w.Duration)
	}
	return nil
}

// EffectiveEnd is the end the scheduler uses: StartDate + Duration.
func (w Workshift) EffectiveEnd() time.Time {
	return w.StartDate.Add(time.Duration(w.Duration) * time.Minute)
}

// Overlaps reports whether [StartDate, EffectiveEnd) intersects [from, to].
func (w Workshift) Overlaps(from, to time.Time) bool {
	return !w.StartDate.After(to) && w.EffectiveEnd().After(from)
}
