package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Booking rejections. Each one is a distinct, user-facing reason.
var (
	ErrDateInPast      = errors.New("appointment date cannot be in the past")
	ErrDateTooFarAhead = errors.New("appointment date is too far in the future")
	ErrPatientConflict = errors.New("patient already has an appointment at that time")
	ErrDoctorConflict  = errors.New("doctor already has an appointment at that time")
)

const DefaultBookingWindow = 30 * 24 * time.Hour

// IsRejection reports whether err is a booking rule violation rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrDateInPast) ||
		errors.Is(err, ErrDateTooFarAhead) ||
		errors.Is(err, ErrPatientConflict) ||
		errors.Is(err, ErrDoctorConflict)
}

// ConflictValidator decides whether a candidate appointment may be booked.
// It never writes.
type ConflictValidator struct {
	repo   Repository
	now    func() time.Time
	window time.Duration
}

func NewConflictValidator(repo Repository, window time.Duration, now func() time.Time) *ConflictValidator {
	if window <= 0 {
		window = DefaultBookingWindow
	}
	if now == nil {
		now = time.Now
	}
	return &ConflictValidator{repo: repo, now: now, window: window}
}

func (v *ConflictValidator) IsPast(date time.Time) bool {
	return date.Before(v.now())
}

func (v *ConflictValidator) IsTooFarAhead(date time.Time) bool {
	return date.After(v.now().Add(v.window))
}

// HasConflict reports whether any non-canceled appointment owned by ownerID
// overlaps [start, start+duration). Touching intervals do not conflict.
func (v *ConflictValidator) HasConflict(ctx context.Context, field OwnerField, ownerID uuid.UUID, start time.Time, duration int) (bool, error) {
	return v.hasConflictExcluding(ctx, field, ownerID, start, duration, uuid.Nil)
}

func (v *ConflictValidator) hasConflictExcluding(ctx context.Context, field OwnerField, ownerID uuid.UUID, start time.Time, duration int, self uuid.UUID) (bool, error) {
	end := start.Add(time.Duration(duration) * time.Minute)

	existing, err := v.repo.ListOverlapping(ctx, field, ownerID, start, end)
	if err != nil {
		return false, fmt.Errorf("load %s appointments: %w", field, err)
	}

	for _, a := range existing {
		if a.Status == StatusCanceled || (self != uuid.Nil && a.ID == self) {
			continue
		}
		if Overlaps(a.AppointmentDate, a.AppointmentEndDate, start, end) {
			return true, nil
		}
	}
	return false, nil
}

// Validate runs every booking rule in precedence order and returns the first
// rejection: past, too far ahead, patient conflict, doctor conflict.
func (v *ConflictValidator) Validate(ctx context.Context, a *Appointment) error {
	if err := v.CheckDate(a.AppointmentDate); err != nil {
		return err
	}
	return v.CheckConflicts(ctx, a)
}

// CheckDate applies the date rules only. It needs no storage.
func (v *ConflictValidator) CheckDate(date time.Time) error {
	if v.IsPast(date) {
		return ErrDateInPast
	}
	if v.IsTooFarAhead(date) {
		return ErrDateTooFarAhead
	}
	return nil
}

// CheckConflicts applies the patient and doctor overlap rules only.
func (v *ConflictValidator) CheckConflicts(ctx context.Context, a *Appointment) error {
	return v.checkConflicts(ctx, a, uuid.Nil)
}

// ValidateReschedule only checks overlaps, ignoring the appointment's own row.
func (v *ConflictValidator) ValidateReschedule(ctx context.Context, a *Appointment) error {
	return v.checkConflicts(ctx, a, a.ID)
}

func (v *ConflictValidator) checkConflicts(ctx context.Context, a *Appointment, self uuid.UUID) error {
	conflict, err := v.hasConflictExcluding(ctx, OwnerPatient, a.PatientID, a.AppointmentDate, a.Duration, self)
	if err != nil {
		return err
	}
	if conflict {
		return ErrPatientConflict
	}

	conflict, err = v.hasConflictExcluding(ctx, OwnerDoctor, a.DoctorID, a.AppointmentDate, a.Duration, self)
	if err != nil {
		return err
	}
	if conflict {
		return ErrDoctorConflict
	}

	return nil
}

// Overlaps checks the three shapes in which a candidate [cStart, cEnd) can
// collide with an existing [eStart, eEnd): it starts inside, it ends inside,
// or it contains the existing one.
func Overlaps(eStart, eEnd, cStart, cEnd time.Time) bool {
	startsInside := !cStart.Before(eStart) && cStart.Before(eEnd)
	endsInside := cEnd.After(eStart) && !cEnd.After(eEnd)
	contains := !eStart.Before(cStart) && !eEnd.After(cEnd)
	return startsInside || endsInside || contains
}
