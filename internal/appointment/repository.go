package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAppointmentExists   = errors.New("appointment with this id already exists")
)

// OwnerField names the column an appointment is owned by for conflict checks.
type OwnerField string

const (
	OwnerPatient OwnerField = "patient_id"
	OwnerDoctor  OwnerField = "doctor_id"
)

func (f OwnerField) Valid() bool {
	return f == OwnerPatient || f == OwnerDoctor
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	CreateMany(ctx context.Context, as []*Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	// Update only succeeds while the row still has status prev. A row that
	// moved on returns ErrInvalidStatusTransition.
	Update(ctx context.Context, a *Appointment, prev Status) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateStatus only succeeds while the row still has status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// For conflict checks. Canceled appointments are never returned.
	ListOverlapping(ctx context.Context, field OwnerField, ownerID uuid.UUID, start, end time.Time) ([]Appointment, error)

	// For availability. Only pending appointments starting in [from, to].
	ListPendingForDoctorDay(ctx context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
