package workshiftsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
)

// Applier writes events into the replica. Every handler is safe to run
// again for the same event.
type Applier struct {
	store workshift.Store
	log   zerolog.Logger
}

var _ Handler = (*Applier)(nil)

func NewApplier(store workshift.Store, log zerolog.Logger) *Applier {
	return &Applier{store: store, log: log}
}

func (a *Applier) Apply(ctx context.Context, e Event) error {
	return e.Accept(ctx, a)
}

func (a *Applier) HandleSync(ctx context.Context, e SyncEvent) error {
	if err := a.store.ReplaceAll(ctx, e.Workshifts); err != nil {
		return fmt.Errorf("replace workshifts: %w", err)
	}
	a.log.Info().Int("count", len(e.Workshifts)).Msg("workshifts synchronized")
	return nil
}

func (a *Applier) HandleCreated(ctx context.Context, e CreatedEvent) error {
	inserted, err := a.store.InsertIfAbsent(ctx, e.Workshift)
	if err != nil {
		return fmt.Errorf("insert workshift %s: %w", e.Workshift.ID, err)
	}
	if !inserted {
		a.log.Debug().Str("workshift_id", e.Workshift.ID.String()).Msg("workshift already exists, not saving")
	}
	return nil
}

func (a *Applier) HandleUpdated(ctx context.Context, e UpdatedEvent) error {
	if err := a.store.Upsert(ctx, e.Workshift); err != nil {
		return fmt.Errorf("update workshift %s: %w", e.Workshift.ID, err)
	}
	return nil
}

func (a *Applier) HandleDeleted(ctx context.Context, e DeletedEvent) error {
	removed, err := a.store.Delete(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("delete workshift %s: %w", e.ID, err)
	}
	if !removed {
		a.log.Debug().Str("workshift_id", e.ID.String()).Msg("workshift already gone")
	}
	return nil
}

func (a *Applier) HandleMany(ctx context.Context, e ManyEvent) error {
	if err := a.store.UpsertMany(ctx, e.Workshifts); err != nil {
		return fmt.Errorf("insert workshifts: %w", err)
	}
	return nil
}
