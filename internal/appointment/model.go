package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusNoShow
}

type Type string

const (
	TypeConsult  Type = "consult"
	TypeRevision Type = "revision"
	TypeFollowUp Type = "follow_up"
)

func (t Type) Valid() bool {
	switch t {
	case TypeConsult, TypeRevision, TypeFollowUp:
		return true
	}
	return false
}

type Specialty string

const (
	SpecialtyFamily        Specialty = "family"
	SpecialtyNursing       Specialty = "nursing"
	SpecialtyPhysiotherapy Specialty = "physiotherapy"
	SpecialtyGynecology    Specialty = "gynecology"
	SpecialtyOther         Specialty = "other"
)

func (s Specialty) Valid() bool {
	switch s {
	case SpecialtyFamily, SpecialtyNursing, SpecialtyPhysiotherapy, SpecialtyGynecology, SpecialtyOther:
		return true
	}
	return false
}

const (
	DefaultDuration = 30
	MinDuration     = 15
	MaxDuration     = 60
)

var (
	ErrInvalidDuration         = fmt.Errorf("duration must be between %d and %d minutes", MinDuration, MaxDuration)
	ErrInvalidSpecialty        = errors.New("invalid specialty")
	ErrInvalidType             = errors.New("invalid appointment type")
	ErrInvalidStatus           = errors.New("invalid appointment status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrMissingDate             = errors.New("appointment date is required")
	ErrMissingOwner            = errors.New("patientId, clinicId and doctorId are required")
)

// IsInvalidInput reports whether err came from rejecting malformed
// appointment fields.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidSpecialty) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrMissingDate) ||
		errors.Is(err, ErrMissingOwner)
}

// Appointment is a booked visit. AppointmentEndDate is derived from
// AppointmentDate and Duration and is only ever written by New and Apply.
type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	ClinicID           uuid.UUID
	DoctorID           uuid.UUID
	Specialty          Specialty
	Type               Type
	AppointmentDate    time.Time
	Duration           int
	AppointmentEndDate time.Time
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewParams carries the caller-supplied fields of a new appointment.
// Zero values select the defaults.
type NewParams struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ClinicID        uuid.UUID
	DoctorID        uuid.UUID
	Specialty       Specialty
	Type            Type
	AppointmentDate time.Time
	Duration        int
	Status          Status
}

func New(p NewParams) (*Appointment, error) {
	a := &Appointment{
		ID:              p.ID,
		PatientID:       p.PatientID,
		ClinicID:        p.ClinicID,
		DoctorID:        p.DoctorID,
		Specialty:       p.Specialty,
		Type:            p.Type,
		AppointmentDate: p.AppointmentDate,
		Duration:        p.Duration,
		Status:          p.Status,
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Type == "" {
		a.Type = TypeConsult
	}
	if a.Duration == 0 {
		a.Duration = DefaultDuration
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	if a.PatientID == uuid.Nil || a.ClinicID == uuid.Nil || a.DoctorID == uuid.Nil {
		return nil, ErrMissingOwner
	}
	if a.AppointmentDate.IsZero() {
		return nil, ErrMissingDate
	}
	if !a.Specialty.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSpecialty, a.Specialty)
	}
	if !a.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}
	if !a.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	if err := checkDuration(a.Duration); err != nil {
		return nil, err
	}

	a.recomputeEnd()
	return a, nil
}

// Update lists the fields a caller may change on an existing appointment.
// Nil fields are left untouched.
type Update struct {
	PatientID       *uuid.UUID
	ClinicID        *uuid.UUID
	DoctorID        *uuid.UUID
	Specialty       *Specialty
	Type            *Type
	AppointmentDate *time.Time
	Duration        *int
	Status          *Status
}

// TouchesSchedule reports whether the update moves the appointment in time
// or to another owner.
func (u Update) TouchesSchedule() bool {
	return u.AppointmentDate != nil || u.Duration != nil || u.PatientID != nil || u.DoctorID != nil
}

// Apply validates u and writes it onto a. On error a is unchanged.
func (a *Appointment) Apply(u Update) error {
	next := *a

	if u.PatientID != nil {
		if *u.PatientID == uuid.Nil {
			return ErrMissingOwner
		}
		next.PatientID = *u.PatientID
	}
	if u.ClinicID != nil {
		if *u.ClinicID == uuid.Nil {
			return ErrMissingOwner
		}
		next.ClinicID = *u.ClinicID
	}
	if u.DoctorID != nil {
		if *u.DoctorID == uuid.Nil {
			return ErrMissingOwner
		}
		next.DoctorID = *u.DoctorID
	}
	if u.Specialty != nil {
		if !u.Specialty.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidSpecialty, *u.Specialty)
		}
		next.Specialty = *u.Specialty
	}
	if u.Type != nil {
		if !u.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidType, *u.Type)
		}
		next.Type = *u.Type
	}
	if u.AppointmentDate != nil {
		if u.AppointmentDate.IsZero() {
			return ErrMissingDate
		}
		next.AppointmentDate = *u.AppointmentDate
	}
	if u.Duration != nil {
		if err := checkDuration(*u.Duration); err != nil {
			return err
		}
		next.Duration = *u.Duration
	}
	if u.Status != nil && *u.Status != next.Status {
		if err := next.Transition(*u.Status); err != nil {
			return err
		}
	}

	next.recomputeEnd()
	*a = next
	return nil
}

// Transition moves a pending appointment into a terminal status.
func (a *Appointment) Transition(to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if a.Status != StatusPending || !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

func (a *Appointment) recomputeEnd() {
	a.AppointmentEndDate = a.AppointmentDate.Add(time.Duration(a.Duration) * time.Minute)
}

func checkDuration(d int) error {
	if d < MinDuration || d > MaxDuration {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, d)
	}
	return nil
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
