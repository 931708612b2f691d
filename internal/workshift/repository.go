package workshift

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrWorkshiftNotFound = errors.New("workshift not found")

// Reader is the read side used by the availability calculator.
type Reader interface {
	// ListOverlapping returns the doctor's shifts at the clinic whose
	// effective window intersects [from, to], ordered by start.
	ListOverlapping(ctx context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Workshift, error)
}

// Store is the full replica, written only by the sync consumer.
type Store interface {
	Reader

	GetByID(ctx context.Context, id uuid.UUID) (*Workshift, error)

	// ReplaceAll atomically swaps the replica contents for shifts.
	ReplaceAll(ctx context.Context, shifts []Workshift) error
	// InsertIfAbsent reports whether a row was written.
	InsertIfAbsent(ctx context.Context, w Workshift) (bool, error)
	Upsert(ctx context.Context, w Workshift) error
	// UpsertMany writes every shift; id collisions overwrite.
	UpsertMany(ctx context.Context, shifts []Workshift) error
	// Delete reports whether a row was removed. A missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int, error)
}
