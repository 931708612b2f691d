package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	PatientID       string     `json:"patientId" validate:"required,uuid"`
	ClinicID        string     `json:"clinicId" validate:"required,uuid"`
	DoctorID        string     `json:"doctorId" validate:"required,uuid"`
	Specialty       string     `json:"specialty" validate:"required,oneof=family nursing physiotherapy gynecology other"`
	Type            string     `json:"type" validate:"omitempty,oneof=consult revision follow_up"`
	AppointmentDate *time.Time `json:"appointmentDate" validate:"required"`
	Duration        int        `json:"duration" validate:"omitempty,min=15,max=60"`
}

func (req BookAppointmentRequest) params() appointment.NewParams {
	p := appointment.NewParams{
		PatientID: uuid.MustParse(req.PatientID),
		ClinicID:  uuid.MustParse(req.ClinicID),
		DoctorID:  uuid.MustParse(req.DoctorID),
		Specialty: appointment.Specialty(req.Specialty),
		Type:      appointment.Type(req.Type),
		Duration:  req.Duration,
	}
	if req.AppointmentDate != nil {
		p.AppointmentDate = *req.AppointmentDate
	}
	return p
}

// UpdateAppointmentRequest changes only the fields present in the body.
type UpdateAppointmentRequest struct {
	PatientID       *string    `json:"patientId" validate:"omitempty,uuid"`
	ClinicID        *string    `json:"clinicId" validate:"omitempty,uuid"`
	DoctorID        *string    `json:"doctorId" validate:"omitempty,uuid"`
	Specialty       *string    `json:"specialty" validate:"omitempty,oneof=family nursing physiotherapy gynecology other"`
	Type            *string    `json:"type" validate:"omitempty,oneof=consult revision follow_up"`
	AppointmentDate *time.Time `json:"appointmentDate"`
	Duration        *int       `json:"duration" validate:"omitempty,min=15,max=60"`
	Status          *string    `json:"status" validate:"omitempty,oneof=pending completed canceled no_show"`
}

func (req UpdateAppointmentRequest) update() appointment.Update {
	var u appointment.Update
	if req.PatientID != nil {
		id := uuid.MustParse(*req.PatientID)
		u.PatientID = &id
	}
	if req.ClinicID != nil {
		id := uuid.MustParse(*req.ClinicID)
		u.ClinicID = &id
	}
	if req.DoctorID != nil {
		id := uuid.MustParse(*req.DoctorID)
		u.DoctorID = &id
	}
	if req.Specialty != nil {
		s := appointment.Specialty(*req.Specialty)
		u.Specialty = &s
	}
	if req.Type != nil {
		t := appointment.Type(*req.Type)
		u.Type = &t
	}
	if req.Status != nil {
		s := appointment.Status(*req.Status)
		u.Status = &s
	}
	u.AppointmentDate = req.AppointmentDate
	u.Duration = req.Duration
	return u
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patientId"`
	ClinicID           uuid.UUID `json:"clinicId"`
	DoctorID           uuid.UUID `json:"doctorId"`
	Specialty          string    `json:"specialty"`
	Type               string    `json:"type"`
	AppointmentDate    time.Time `json:"appointmentDate"`
	Duration           int       `json:"duration"`
	AppointmentEndDate time.Time `json:"appointmentEndDate"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ClinicID:           a.ClinicID,
		DoctorID:           a.DoctorID,
		Specialty:          string(a.Specialty),
		Type:               string(a.Type),
		AppointmentDate:    a.AppointmentDate,
		Duration:           a.Duration,
		AppointmentEndDate: a.AppointmentEndDate,
		Status:             string(a.Status),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
