package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/availability"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

type AppointmentService interface {
	Book(ctx context.Context, p appointment.NewParams) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, u appointment.Update) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type AvailabilityService interface {
	Availability(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, slotDuration int) ([]availability.Slot, error)
}

type appointmentHandlers struct {
	svc      AppointmentService
	validate *requestValidator
	log      zerolog.Logger
}

func (h *appointmentHandlers) book(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), req.params())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *appointmentHandlers) listByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := pathUUID(w, r, "patientId")
	if !ok {
		return
	}
	appts, err := h.svc.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *appointmentHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	appt, err := h.svc.Update(r.Context(), id, req.update())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *appointmentHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition serves complete, cancel and no-show.
func (h *appointmentHandlers) transition(fn func(context.Context, uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		appt, err := fn(r.Context(), id)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func (h *appointmentHandlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrDateInPast):
		writeError(w, http.StatusBadRequest, "date_in_past", err.Error())
	case errors.Is(err, appointment.ErrDateTooFarAhead):
		writeError(w, http.StatusBadRequest, "date_too_far_ahead", err.Error())
	case appointment.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
	case errors.Is(err, appointment.ErrPatientConflict):
		writeError(w, http.StatusConflict, "patient_conflict", err.Error())
	case errors.Is(err, appointment.ErrDoctorConflict):
		writeError(w, http.StatusConflict, "doctor_conflict", err.Error())
	case errors.Is(err, appointment.ErrBookingInProgress),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "booking_in_progress", appointment.ErrBookingInProgress.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentExists):
		writeError(w, http.StatusConflict, "appointment_exists", err.Error())
	default:
		h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

type availabilityHandler struct {
	svc AvailabilityService
	loc *time.Location
	log zerolog.Logger
}

func (h *availabilityHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	clinicID, err := uuid.Parse(q.Get("clinicId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicId must be a valid UUID")
		return
	}
	doctorID, err := uuid.Parse(q.Get("doctorId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
		return
	}
	date, err := parseDate(q.Get("date"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD or RFC 3339")
		return
	}

	slotDuration := 0
	if raw := q.Get("slotDuration"); raw != "" {
		slotDuration, err = strconv.Atoi(raw)
		if err != nil || !availability.ValidSlotDuration(slotDuration) {
			writeError(w, http.StatusBadRequest, "invalid_slot_duration",
				fmt.Sprintf("slotDuration must be between %d and %d minutes", availability.MinSlotDuration, availability.MaxSlotDuration))
			return
		}
	}

	slots, err := h.svc.Availability(r.Context(), clinicID, doctorID, date, slotDuration)
	if errors.Is(err, availability.ErrInvalidSlotDuration) {
		writeError(w, http.StatusBadRequest, "invalid_slot_duration", err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("availability failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeValidationError(w http.ResponseWriter, err error) {
	fields := fieldErrors(err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_failed",
		Details: summarize(fields),
		Fields:  fields,
	})
}
