// Package availability turns a doctor's replicated work shifts and pending
// appointments into bookable slot start times.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
)

// Slot lengths in minutes.
const (
	DefaultSlotDuration = 30
	MinSlotDuration     = 5
	MaxSlotDuration     = 24 * 60
)

var ErrInvalidSlotDuration = fmt.Errorf("slot duration must be between %d and %d minutes", MinSlotDuration, MaxSlotDuration)

// ValidSlotDuration reports whether minutes is an accepted slot length.
func ValidSlotDuration(minutes int) bool {
	return minutes >= MinSlotDuration && minutes <= MaxSlotDuration
}

// TrailingPolicy decides what happens to the last slot of a free interval
// when a full slot no longer fits before the interval ends.
type TrailingPolicy string

const (
	// TrailingKeep emits a slot whenever its start is before the interval end.
	TrailingKeep TrailingPolicy = "keep"
	// TrailingDrop only emits slots that end on or before the interval end.
	TrailingDrop TrailingPolicy = "drop"
)

// FreeInterval is a gap [Start, End) inside a work shift with no pending
// appointment. Start is always before End.
type FreeInterval struct {
	Start time.Time
	End   time.Time
}

// Slot is one candidate booking start.
type Slot struct {
	AppointmentDate time.Time `json:"appointmentDate"`
}

// BusyAppointment pairs a pending appointment with the shifts of its day.
type BusyAppointment struct {
	appointment.Appointment
	Workshifts []workshift.Workshift
}

// BusyWindow is everything that occupies or bounds a doctor's calendar day.
type BusyWindow struct {
	DayStart     time.Time
	DayEnd       time.Time
	Appointments []BusyAppointment
	Workshifts   []workshift.Workshift
}

type AppointmentReader interface {
	ListPendingForDoctorDay(ctx context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

type Calculator struct {
	appts       AppointmentReader
	shifts      workshift.Reader
	loc         *time.Location
	defaultSlot int
	policy      TrailingPolicy
}

func NewCalculator(appts AppointmentReader, shifts workshift.Reader, loc *time.Location, defaultSlot int, policy TrailingPolicy) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	if defaultSlot <= 0 {
		defaultSlot = DefaultSlotDuration
	}
	if policy == "" {
		policy = TrailingKeep
	}
	return &Calculator{
		appts:       appts,
		shifts:      shifts,
		loc:         loc,
		defaultSlot: defaultSlot,
		policy:      policy,
	}
}

// DayBounds returns the first and last millisecond of date's calendar day in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}

// FindBusyWindow loads the pending appointments starting on date's day and
// the shifts overlapping it.
func (c *Calculator) FindBusyWindow(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time) (*BusyWindow, error) {
	from, to := DayBounds(date, c.loc)

	appts, err := c.appts.ListPendingForDoctorDay(ctx, clinicID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load pending appointments: %w", err)
	}

	shifts, err := c.shifts.ListOverlapping(ctx, clinicID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load workshifts: %w", err)
	}

	window := &BusyWindow{
		DayStart:     from,
		DayEnd:       to,
		Appointments: make([]BusyAppointment, 0, len(appts)),
		Workshifts:   shifts,
	}
	for _, a := range appts {
		window.Appointments = append(window.Appointments, BusyAppointment{Appointment: a, Workshifts: shifts})
	}
	return window, nil
}

// FreeIntervals loads the doctor's shifts for date and computes the gaps
// left by appointments.
func (c *Calculator) FreeIntervals(ctx context.Context, appts []appointment.Appointment, date time.Time, doctorID, clinicID uuid.UUID) ([]FreeInterval, error) {
	from, to := DayBounds(date, c.loc)

	shifts, err := c.shifts.ListOverlapping(ctx, clinicID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load workshifts: %w", err)
	}
	return ComputeFreeIntervals(appts, shifts), nil
}

// Availability returns the bookable slot starts for a doctor at a clinic on
// date. No shifts means no slots, not an error.
func (c *Calculator) Availability(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, slotDuration int) ([]Slot, error) {
	if slotDuration == 0 {
		slotDuration = c.defaultSlot
	}
	if !ValidSlotDuration(slotDuration) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSlotDuration, slotDuration)
	}

	window, err := c.FindBusyWindow(ctx, clinicID, doctorID, date)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	if len(window.Workshifts) == 0 {
		return slots, nil
	}

	appts := make([]appointment.Appointment, 0, len(window.Appointments))
	for _, b := range window.Appointments {
		appts = append(appts, b.Appointment)
	}

	for _, start := range Slots(ComputeFreeIntervals(appts, window.Workshifts), slotDuration, c.policy) {
		slots = append(slots, Slot{AppointmentDate: start})
	}
	return slots, nil
}

// ComputeFreeIntervals walks each shift in start order and emits the gaps
// before, between and after the appointments that start inside it. A shift
// with no appointments is returned whole.
func ComputeFreeIntervals(appts []appointment.Appointment, shifts []workshift.Workshift) []FreeInterval {
	sortedShifts := append([]workshift.Workshift(nil), shifts...)
	sort.SliceStable(sortedShifts, func(i, j int) bool {
		return sortedShifts[i].StartDate.Before(sortedShifts[j].StartDate)
	})

	sortedAppts := append([]appointment.Appointment(nil), appts...)
	sort.SliceStable(sortedAppts, func(i, j int) bool {
		return sortedAppts[i].AppointmentDate.Before(sortedAppts[j].AppointmentDate)
	})

	var intervals []FreeInterval
	emit := func(start, end time.Time) {
		if start.Before(end) {
			intervals = append(intervals, FreeInterval{Start: start, End: end})
		}
	}

	for _, shift := range sortedShifts {
		shiftStart := shift.StartDate
		shiftEnd := shift.EffectiveEnd()
		cursor := shiftStart

		for _, a := range sortedAppts {
			if a.AppointmentDate.Before(shiftStart) || !a.AppointmentDate.Before(shiftEnd) {
				continue
			}
			emit(cursor, a.AppointmentDate)
			if a.AppointmentEndDate.After(cursor) {
				cursor = a.AppointmentEndDate
			}
		}

		emit(cursor, shiftEnd)
	}

	return intervals
}

// Slots carves each interval into starts spaced slotDuration minutes apart,
// in interval order. Zero means DefaultSlotDuration; any other length outside
// [MinSlotDuration, MaxSlotDuration] yields no slots.
func Slots(intervals []FreeInterval, slotDuration int, policy TrailingPolicy) []time.Time {
	if slotDuration == 0 {
		slotDuration = DefaultSlotDuration
	}
	if !ValidSlotDuration(slotDuration) {
		return nil
	}
	step := time.Duration(slotDuration) * time.Minute

	var starts []time.Time
	for _, iv := range intervals {
		for s := iv.Start; s.Before(iv.End); s = s.Add(step) {
			if policy == TrailingDrop && s.Add(step).After(iv.End) {
				break
			}
			starts = append(starts, s)
		}
	}
	return starts
}
