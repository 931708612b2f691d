package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 20, hour, minute, 0, 0, time.UTC)
}

func mustNew(t *testing.T, p NewParams) *Appointment {
	t.Helper()
	a, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestIsPastAndTooFarAhead(t *testing.T) {
	v := NewConflictValidator(newMockRepo(), 0, clock)

	if !v.IsPast(fixedNow.Add(-24 * time.Hour)) {
		t.Error("yesterday should be in the past")
	}
	if v.IsPast(fixedNow) {
		t.Error("now is not strictly in the past")
	}
	if v.IsTooFarAhead(fixedNow.Add(30 * 24 * time.Hour)) {
		t.Error("exactly 30 days ahead is allowed")
	}
	if !v.IsTooFarAhead(fixedNow.Add(31 * 24 * time.Hour)) {
		t.Error("31 days ahead should be too far")
	}
}

func TestOverlaps(t *testing.T) {
	eStart, eEnd := at(10, 0), at(10, 30)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"starts inside", at(10, 15), at(10, 45), true},
		{"ends inside", at(9, 45), at(10, 15), true},
		{"contains", at(9, 30), at(11, 0), true},
		{"identical", at(10, 0), at(10, 30), true},
		{"inside", at(10, 5), at(10, 20), true},
		{"touches end", at(10, 30), at(11, 0), false},
		{"touches start", at(9, 30), at(10, 0), false},
		{"before", at(8, 0), at(9, 0), false},
		{"after", at(11, 0), at(11, 30), false},
	}

	for _, tt := range tests {
		if got := Overlaps(eStart, eEnd, tt.start, tt.end); got != tt.want {
			t.Errorf("%s: Overlaps = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHasConflict(t *testing.T) {
	repo := newMockRepo()
	patient := uuid.New()
	existing := mustNew(t, NewParams{
		PatientID: patient, ClinicID: uuid.New(), DoctorID: uuid.New(),
		Specialty: SpecialtyNursing, AppointmentDate: at(10, 0),
	})
	repo.put(existing)

	v := NewConflictValidator(repo, 0, clock)
	ctx := context.Background()

	conflict, err := v.HasConflict(ctx, OwnerPatient, patient, at(10, 15), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !conflict {
		t.Error("expected conflict for overlapping slot")
	}

	conflict, err = v.HasConflict(ctx, OwnerPatient, patient, at(10, 30), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict {
		t.Error("back-to-back appointment must not conflict")
	}

	conflict, err = v.HasConflict(ctx, OwnerPatient, uuid.New(), at(10, 0), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict {
		t.Error("another patient must not conflict")
	}
}

func TestHasConflict_IgnoresCanceled(t *testing.T) {
	repo := newMockRepo()
	doctor := uuid.New()
	canceled := mustNew(t, NewParams{
		PatientID: uuid.New(), ClinicID: uuid.New(), DoctorID: doctor,
		Specialty: SpecialtyOther, AppointmentDate: at(10, 0), Status: StatusCanceled,
	})
	repo.put(canceled)

	v := NewConflictValidator(repo, 0, clock)
	conflict, err := v.HasConflict(context.Background(), OwnerDoctor, doctor, at(10, 0), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict {
		t.Error("canceled appointment must not block the slot")
	}
}

func TestHasConflict_PropagatesQueryError(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = errors.New("connection refused")

	v := NewConflictValidator(repo, 0, clock)
	_, err := v.HasConflict(context.Background(), OwnerDoctor, uuid.New(), at(10, 0), 30)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRejection(err) {
		t.Errorf("query error must not be a rejection: %v", err)
	}
}

func TestValidate_Precedence(t *testing.T) {
	patient := uuid.New()
	doctor := uuid.New()
	clinic := uuid.New()

	repo := newMockRepo()
	// patient busy 10:00-10:30 with another doctor, doctor busy 10:00-10:30 with another patient
	repo.put(mustNew(t, NewParams{PatientID: patient, ClinicID: clinic, DoctorID: uuid.New(), Specialty: SpecialtyFamily, AppointmentDate: at(10, 0)}))
	repo.put(mustNew(t, NewParams{PatientID: uuid.New(), ClinicID: clinic, DoctorID: doctor, Specialty: SpecialtyFamily, AppointmentDate: at(10, 0)}))
	repo.put(mustNew(t, NewParams{PatientID: uuid.New(), ClinicID: clinic, DoctorID: doctor, Specialty: SpecialtyFamily, AppointmentDate: at(12, 0)}))

	v := NewConflictValidator(repo, 0, clock)

	tests := []struct {
		name string
		date time.Time
		want error
	}{
		{"past wins over everything", fixedNow.Add(-24 * time.Hour), ErrDateInPast},
		{"too far ahead", fixedNow.Add(31 * 24 * time.Hour), ErrDateTooFarAhead},
		{"patient conflict before doctor conflict", at(10, 0), ErrPatientConflict},
		{"doctor conflict", at(12, 15), ErrDoctorConflict},
		{"free slot", at(14, 0), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := mustNew(t, NewParams{
				PatientID: patient, ClinicID: clinic, DoctorID: doctor,
				Specialty: SpecialtyFamily, AppointmentDate: tt.date,
			})
			err := v.Validate(context.Background(), candidate)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateReschedule_IgnoresOwnRow(t *testing.T) {
	repo := newMockRepo()
	a := mustNew(t, NewParams{
		PatientID: uuid.New(), ClinicID: uuid.New(), DoctorID: uuid.New(),
		Specialty: SpecialtyFamily, AppointmentDate: at(10, 0),
	})
	repo.put(a)

	moved := *a
	d := 45
	if err := moved.Apply(Update{Duration: &d}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	v := NewConflictValidator(repo, 0, clock)
	if err := v.ValidateReschedule(context.Background(), &moved); err != nil {
		t.Fatalf("own row must not conflict: %v", err)
	}
}
