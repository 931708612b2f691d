package workshift

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStore_ListOverlappingSortedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	doctor, clinic := uuid.New(), uuid.New()

	afternoon := Workshift{ID: uuid.New(), DoctorID: doctor, ClinicID: clinic, StartDate: time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC), Duration: 240}
	morning := Workshift{ID: uuid.New(), DoctorID: doctor, ClinicID: clinic, StartDate: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC), Duration: 240}
	otherClinic := Workshift{ID: uuid.New(), DoctorID: doctor, ClinicID: uuid.New(), StartDate: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC), Duration: 240}
	tomorrow := Workshift{ID: uuid.New(), DoctorID: doctor, ClinicID: clinic, StartDate: time.Date(2026, 10, 21, 8, 0, 0, 0, time.UTC), Duration: 240}

	if err := store.UpsertMany(ctx, []Workshift{afternoon, morning, otherClinic, tomorrow}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	from := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 20, 23, 59, 59, 0, time.UTC)
	got, err := store.ListOverlapping(ctx, clinic, doctor, from, to)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != morning.ID || got[1].ID != afternoon.ID {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryStore_ReplaceAllDropsPrevious(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	old := Workshift{ID: uuid.New()}
	if err := store.Upsert(ctx, old); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	fresh := Workshift{ID: uuid.New()}
	if err := store.ReplaceAll(ctx, []Workshift{fresh}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if _, err := store.GetByID(ctx, old.ID); err != ErrWorkshiftNotFound {
		t.Errorf("old shift survived replace: %v", err)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
