package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCanceled  = "APPOINTMENT_CANCELED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrBookingInProgress = errors.New("another booking for this doctor or patient is in progress, please retry")
)

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	validator *ConflictValidator
	log       zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, validator *ConflictValidator, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		locker:    locker,
		validator: validator,
		log:       log.With().Str("component", "appointment").Logger(),
	}
}

// Book validates and stores a new appointment. Date rules are checked up
// front; the conflict checks and the insert run under a lock on both the
// doctor and the patient so concurrent requests for the same people are
// serialized.
func (s *Service) Book(ctx context.Context, p NewParams) (*Appointment, error) {
	candidate, err := New(p)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CheckDate(candidate.AppointmentDate); err != nil {
		return nil, err
	}

	var created *Appointment
	keys := []string{
		redisclient.DoctorLockKey(candidate.DoctorID),
		redisclient.PatientLockKey(candidate.PatientID),
	}

	err = s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
		if err := s.validator.CheckConflicts(lockCtx, candidate); err != nil {
			return err
		}

		appt, err := s.repo.Create(lockCtx, candidate)
		if err != nil {
			if IsRejection(err) || errors.Is(err, ErrAppointmentExists) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"patient_id":       created.PatientID.String(),
		"doctor_id":        created.DoctorID.String(),
		"clinic_id":        created.ClinicID.String(),
		"appointment_date": created.AppointmentDate,
		"duration":         created.Duration,
	})

	return created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// Update applies a field update. The end date is recomputed by Apply; when
// the update moves the appointment, overlaps are re-checked under lock.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	prev := appt.Status
	if err := appt.Apply(u); err != nil {
		return nil, err
	}

	save := func(ctx context.Context) (*Appointment, error) {
		updated, err := s.repo.Update(ctx, appt, prev)
		if err != nil {
			if IsRejection(err) || errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrInvalidStatusTransition) {
				return nil, err
			}
			return nil, fmt.Errorf("update appointment: %w", err)
		}
		return updated, nil
	}

	var updated *Appointment
	if u.TouchesSchedule() && appt.Status != StatusCanceled {
		keys := []string{
			redisclient.DoctorLockKey(appt.DoctorID),
			redisclient.PatientLockKey(appt.PatientID),
		}
		err = s.locker.WithLock(ctx, keys, func(lockCtx context.Context) error {
			if err := s.validator.ValidateReschedule(lockCtx, appt); err != nil {
				return err
			}
			updated, err = save(lockCtx)
			return err
		})
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
	} else {
		updated, err = save(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentUpdated, map[string]any{
		"appointment_date": updated.AppointmentDate,
		"duration":         updated.Duration,
		"status":           updated.Status,
	})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, EventAppointmentCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCanceled, EventAppointmentCanceled)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, EventAppointmentNoShow)
}

// transition assigns a terminal status. Booking rules are not re-checked.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, eventType string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	from := appt.Status
	if err := appt.Transition(to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// the row left pending between the read and the guarded update
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{"from": from, "to": to})
	return updated, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert appointment event")
	}
}
