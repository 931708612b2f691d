package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 20, hour, minute, 0, 0, time.UTC)
}

func shift(start time.Time, minutes int) workshift.Workshift {
	return workshift.Workshift{ID: uuid.New(), StartDate: start, Duration: minutes}
}

func appt(start time.Time, minutes int) appointment.Appointment {
	return appointment.Appointment{
		ID:                 uuid.New(),
		AppointmentDate:    start,
		Duration:           minutes,
		AppointmentEndDate: start.Add(time.Duration(minutes) * time.Minute),
		Status:             appointment.StatusPending,
	}
}

func assertIntervals(t *testing.T, got []FreeInterval, want ...FreeInterval) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d intervals %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("interval %d = [%s, %s), want [%s, %s)", i,
				got[i].Start.Format("15:04"), got[i].End.Format("15:04"),
				want[i].Start.Format("15:04"), want[i].End.Format("15:04"))
		}
	}
}

func TestComputeFreeIntervals_EmptyShiftIsOneInterval(t *testing.T) {
	got := ComputeFreeIntervals(nil, []workshift.Workshift{shift(at(9, 0), 240)})
	assertIntervals(t, got, FreeInterval{at(9, 0), at(13, 0)})
}

func TestComputeFreeIntervals_SplitsAroundAppointment(t *testing.T) {
	got := ComputeFreeIntervals(
		[]appointment.Appointment{appt(at(10, 0), 30)},
		[]workshift.Workshift{shift(at(9, 0), 240)},
	)
	assertIntervals(t, got,
		FreeInterval{at(9, 0), at(10, 0)},
		FreeInterval{at(10, 30), at(13, 0)},
	)
}

func TestComputeFreeIntervals_BackToBackAndEdges(t *testing.T) {
	got := ComputeFreeIntervals(
		[]appointment.Appointment{
			appt(at(12, 30), 30), // flush with shift end
			appt(at(9, 0), 30),   // flush with shift start
			appt(at(9, 30), 15),  // back to back
			appt(at(11, 0), 60),
		},
		[]workshift.Workshift{shift(at(9, 0), 240)},
	)
	assertIntervals(t, got,
		FreeInterval{at(9, 45), at(11, 0)},
		FreeInterval{at(12, 0), at(12, 30)},
	)
}

func TestComputeFreeIntervals_MultipleShiftsSortedAndScoped(t *testing.T) {
	got := ComputeFreeIntervals(
		[]appointment.Appointment{
			appt(at(15, 0), 30),
			appt(at(8, 0), 30), // before any shift, ignored
		},
		[]workshift.Workshift{
			shift(at(14, 0), 120),
			shift(at(9, 0), 60),
		},
	)
	assertIntervals(t, got,
		FreeInterval{at(9, 0), at(10, 0)},
		FreeInterval{at(14, 0), at(15, 0)},
		FreeInterval{at(15, 30), at(16, 0)},
	)
}

func TestComputeFreeIntervals_AppointmentRunningPastShiftEnd(t *testing.T) {
	got := ComputeFreeIntervals(
		[]appointment.Appointment{appt(at(9, 45), 30)},
		[]workshift.Workshift{shift(at(9, 0), 60)},
	)
	assertIntervals(t, got, FreeInterval{at(9, 0), at(9, 45)})
}

func TestComputeFreeIntervals_NoShifts(t *testing.T) {
	got := ComputeFreeIntervals([]appointment.Appointment{appt(at(10, 0), 30)}, nil)
	if len(got) != 0 {
		t.Fatalf("expected no intervals, got %v", got)
	}
}

func TestSlots_FourHourShift(t *testing.T) {
	got := Slots([]FreeInterval{{at(9, 0), at(13, 0)}}, 30, TrailingKeep)

	want := []time.Time{at(9, 0), at(9, 30), at(10, 0), at(10, 30), at(11, 0), at(11, 30), at(12, 0), at(12, 30)}
	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("slot %d = %s, want %s", i, got[i].Format("15:04"), want[i].Format("15:04"))
		}
	}
}

func TestSlots_TrailingPolicy(t *testing.T) {
	intervals := []FreeInterval{{at(9, 0), at(10, 0)}, {at(10, 30), at(11, 15)}}

	keep := Slots(intervals, 30, TrailingKeep)
	if len(keep) != 4 {
		t.Fatalf("keep: got %d slots, want 4", len(keep))
	}
	if !keep[3].Equal(at(11, 0)) {
		t.Errorf("keep: last slot = %s, want 11:00", keep[3].Format("15:04"))
	}

	drop := Slots(intervals, 30, TrailingDrop)
	if len(drop) != 3 {
		t.Fatalf("drop: got %d slots, want 3", len(drop))
	}
	if !drop[2].Equal(at(10, 30)) {
		t.Errorf("drop: last slot = %s, want 10:30", drop[2].Format("15:04"))
	}
}

func TestSlots_DefaultDuration(t *testing.T) {
	got := Slots([]FreeInterval{{at(9, 0), at(10, 0)}}, 0, TrailingKeep)
	if len(got) != 2 {
		t.Fatalf("got %d slots, want 2 with default 30 minutes", len(got))
	}
}

func TestSlots_OutOfRangeDuration(t *testing.T) {
	intervals := []FreeInterval{{at(9, 0), at(13, 0)}}

	for _, d := range []int{-30, 1, MaxSlotDuration + 1, 200000000} {
		done := make(chan []time.Time, 1)
		go func() { done <- Slots(intervals, d, TrailingKeep) }()

		select {
		case got := <-done:
			if len(got) != 0 {
				t.Errorf("slotDuration=%d: got %d slots, want none", d, len(got))
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("slotDuration=%d: Slots did not return", d)
		}
	}

	if got := Slots(intervals, MaxSlotDuration, TrailingKeep); len(got) != 1 {
		t.Errorf("max duration: got %d slots, want 1", len(got))
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:30 UTC on the 19th is 01:30 on the 20th in UTC+2
	start, end := DayBounds(time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC), loc)

	if want := time.Date(2026, 10, 20, 0, 0, 0, 0, loc); !start.Equal(want) {
		t.Errorf("start = %s, want %s", start, want)
	}
	if want := time.Date(2026, 10, 20, 23, 59, 59, int(999*time.Millisecond), loc); !end.Equal(want) {
		t.Errorf("end = %s, want %s", end, want)
	}
}

// -- Availability end to end --

type fakeAppointments struct {
	appts []appointment.Appointment
	err   error
}

func (f *fakeAppointments) ListPendingForDoctorDay(_ context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []appointment.Appointment
	for _, a := range f.appts {
		if a.ClinicID != clinicID || a.DoctorID != doctorID || a.Status != appointment.StatusPending {
			continue
		}
		if a.AppointmentDate.Before(from) || a.AppointmentDate.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func TestAvailability(t *testing.T) {
	ctx := context.Background()
	clinic, doctor := uuid.New(), uuid.New()

	store := workshift.NewMemoryStore()
	if err := store.Upsert(ctx, workshift.Workshift{ID: uuid.New(), ClinicID: clinic, DoctorID: doctor, StartDate: at(9, 0), Duration: 240}); err != nil {
		t.Fatalf("seed shift: %v", err)
	}

	booked := appt(at(10, 0), 30)
	booked.ClinicID, booked.DoctorID = clinic, doctor
	canceled := appt(at(11, 0), 30)
	canceled.ClinicID, canceled.DoctorID = clinic, doctor
	canceled.Status = appointment.StatusCanceled

	calc := NewCalculator(&fakeAppointments{appts: []appointment.Appointment{booked, canceled}}, store, time.UTC, 30, TrailingKeep)

	slots, err := calc.Availability(ctx, clinic, doctor, at(0, 0), 0)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}

	// 09:00, 09:30, then 10:30..12:30 (five slots), canceled 11:00 stays free
	if len(slots) != 7 {
		t.Fatalf("got %d slots: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.AppointmentDate.Equal(at(10, 0)) {
			t.Error("booked 10:00 offered as a slot")
		}
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].AppointmentDate.After(slots[i-1].AppointmentDate) {
			t.Fatalf("slots not ascending at %d", i)
		}
	}
}

func TestAvailability_NoShiftsIsEmptyNotError(t *testing.T) {
	calc := NewCalculator(&fakeAppointments{}, workshift.NewMemoryStore(), time.UTC, 30, TrailingKeep)

	slots, err := calc.Availability(context.Background(), uuid.New(), uuid.New(), at(0, 0), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", slots)
	}
}

func TestAvailability_RejectsSlotDuration(t *testing.T) {
	calc := NewCalculator(&fakeAppointments{}, workshift.NewMemoryStore(), time.UTC, 30, TrailingKeep)

	_, err := calc.Availability(context.Background(), uuid.New(), uuid.New(), at(0, 0), 200000000)
	if !errors.Is(err, ErrInvalidSlotDuration) {
		t.Fatalf("expected ErrInvalidSlotDuration, got %v", err)
	}
}

func TestAvailability_PropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	calc := NewCalculator(&fakeAppointments{err: boom}, workshift.NewMemoryStore(), time.UTC, 30, TrailingKeep)

	_, err := calc.Availability(context.Background(), uuid.New(), uuid.New(), at(0, 0), 30)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestFindBusyWindow_PairsShiftsWithAppointments(t *testing.T) {
	ctx := context.Background()
	clinic, doctor := uuid.New(), uuid.New()

	store := workshift.NewMemoryStore()
	_ = store.Upsert(ctx, workshift.Workshift{ID: uuid.New(), ClinicID: clinic, DoctorID: doctor, StartDate: at(9, 0), Duration: 240})
	_ = store.Upsert(ctx, workshift.Workshift{ID: uuid.New(), ClinicID: clinic, DoctorID: doctor, StartDate: at(15, 0), Duration: 120})

	a := appt(at(10, 0), 30)
	a.ClinicID, a.DoctorID = clinic, doctor
	nextDay := appt(at(10, 0).Add(24*time.Hour), 30)
	nextDay.ClinicID, nextDay.DoctorID = clinic, doctor

	calc := NewCalculator(&fakeAppointments{appts: []appointment.Appointment{a, nextDay}}, store, time.UTC, 30, TrailingKeep)
	window, err := calc.FindBusyWindow(ctx, clinic, doctor, at(12, 0))
	if err != nil {
		t.Fatalf("busy window: %v", err)
	}
	if len(window.Appointments) != 1 {
		t.Fatalf("got %d appointments, want 1", len(window.Appointments))
	}
	if len(window.Appointments[0].Workshifts) != 2 {
		t.Errorf("appointment paired with %d shifts, want 2", len(window.Appointments[0].Workshifts))
	}

	intervals, err := calc.FreeIntervals(ctx, []appointment.Appointment{a}, at(12, 0), doctor, clinic)
	if err != nil {
		t.Fatalf("free intervals: %v", err)
	}
	assertIntervals(t, intervals,
		FreeInterval{at(9, 0), at(10, 0)},
		FreeInterval{at(10, 30), at(13, 0)},
		FreeInterval{at(15, 0), at(17, 0)},
	)
}
