// Package workshiftsync keeps the local workshift replica in step with the
// workshift service's fanout feed.
package workshiftsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
)

type Kind string

const (
	KindSync    Kind = "workshift-sync"
	KindCreated Kind = "workshift-created"
	KindUpdated Kind = "workshift-updated"
	KindDeleted Kind = "workshift-deleted"
	KindMany    Kind = "workshifts-many"
)

var (
	ErrUnknownEvent   = errors.New("unknown workshift event")
	ErrMalformedEvent = errors.New("malformed workshift event")
)

// Event is one of SyncEvent, CreatedEvent, UpdatedEvent, DeletedEvent or
// ManyEvent.
type Event interface {
	Kind() Kind
	Accept(ctx context.Context, h Handler) error
	sealed()
}

// Handler has one method per event kind.
type Handler interface {
	HandleSync(ctx context.Context, e SyncEvent) error
	HandleCreated(ctx context.Context, e CreatedEvent) error
	HandleUpdated(ctx context.Context, e UpdatedEvent) error
	HandleDeleted(ctx context.Context, e DeletedEvent) error
	HandleMany(ctx context.Context, e ManyEvent) error
}

// SyncEvent replaces the whole replica.
type SyncEvent struct{ Workshifts []workshift.Workshift }

type CreatedEvent struct{ Workshift workshift.Workshift }

type UpdatedEvent struct{ Workshift workshift.Workshift }

type DeletedEvent struct{ ID uuid.UUID }

// ManyEvent adds shifts without touching the rest of the replica.
type ManyEvent struct{ Workshifts []workshift.Workshift }

func (SyncEvent) Kind() Kind    { return KindSync }
func (CreatedEvent) Kind() Kind { return KindCreated }
func (UpdatedEvent) Kind() Kind { return KindUpdated }
func (DeletedEvent) Kind() Kind { return KindDeleted }
func (ManyEvent) Kind() Kind    { return KindMany }

func (e SyncEvent) Accept(ctx context.Context, h Handler) error    { return h.HandleSync(ctx, e) }
func (e CreatedEvent) Accept(ctx context.Context, h Handler) error { return h.HandleCreated(ctx, e) }
func (e UpdatedEvent) Accept(ctx context.Context, h Handler) error { return h.HandleUpdated(ctx, e) }
func (e DeletedEvent) Accept(ctx context.Context, h Handler) error { return h.HandleDeleted(ctx, e) }
func (e ManyEvent) Accept(ctx context.Context, h Handler) error    { return h.HandleMany(ctx, e) }

func (SyncEvent) sealed()    {}
func (CreatedEvent) sealed() {}
func (UpdatedEvent) sealed() {}
func (DeletedEvent) sealed() {}
func (ManyEvent) sealed()    {}

// record is a workshift as it travels on the feed.
type record struct {
	ID        uuid.UUID  `json:"_id"`
	DoctorID  uuid.UUID  `json:"doctorId"`
	ClinicID  uuid.UUID  `json:"clinicId"`
	StartDate time.Time  `json:"startDate"`
	Duration  int        `json:"duration,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// toWorkshift converts a feed record. List payloads may omit _id and get a
// generated one; single-record events must carry it so replays hit the
// same row.
func (r record) toWorkshift(requireID bool) (workshift.Workshift, error) {
	if requireID && r.ID == uuid.Nil {
		return workshift.Workshift{}, errors.New("missing _id")
	}
	w := workshift.Workshift{
		ID:        r.ID,
		DoctorID:  r.DoctorID,
		ClinicID:  r.ClinicID,
		StartDate: r.StartDate,
		Duration:  r.Duration,
		EndDate:   r.EndDate,
	}
	if err := w.Normalize(); err != nil {
		return workshift.Workshift{}, fmt.Errorf("workshift %s: %w", w.ID, err)
	}
	return w, nil
}

func fromWorkshift(w workshift.Workshift) record {
	return record{
		ID:        w.ID,
		DoctorID:  w.DoctorID,
		ClinicID:  w.ClinicID,
		StartDate: w.StartDate,
		Duration:  w.Duration,
		EndDate:   w.EndDate,
	}
}

// envelope is the self-describing body. Bodies without an event field are
// bare payloads whose kind is the routing key.
type envelope struct {
	Event      Kind            `json:"event"`
	Workshifts json.RawMessage `json:"workshifts,omitempty"`
	Workshift  json.RawMessage `json:"workshift,omitempty"`
	ID         json.RawMessage `json:"id,omitempty"`
}

// Decode parses a delivery body. The kind comes from the body's event field
// when present, otherwise from routingKey.
func Decode(routingKey string, body []byte) (Event, error) {
	kind, payload := Kind(routingKey), bytes.TrimSpace(body)

	if len(payload) > 0 && payload[0] == '{' {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if env.Event != "" {
			kind = env.Event
			payload = env.payload()
		}
	}

	switch kind {
	case KindSync:
		shifts, err := decodeMany(payload)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return SyncEvent{Workshifts: shifts}, nil
	case KindMany:
		shifts, err := decodeMany(payload)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return ManyEvent{Workshifts: shifts}, nil
	case KindCreated:
		w, err := decodeOne(payload)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return CreatedEvent{Workshift: w}, nil
	case KindUpdated:
		w, err := decodeOne(payload)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return UpdatedEvent{Workshift: w}, nil
	case KindDeleted:
		id, err := decodeID(payload)
		if err != nil {
			return nil, malformed(kind, err)
		}
		return DeletedEvent{ID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
}

func (env envelope) payload() []byte {
	switch env.Event {
	case KindSync, KindMany:
		return env.Workshifts
	case KindDeleted:
		if len(env.Workshift) == 0 {
			return env.ID
		}
	}
	return env.Workshift
}

func malformed(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, kind, err)
}

func decodeMany(payload []byte) ([]workshift.Workshift, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	var recs []record
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, err
	}
	out := make([]workshift.Workshift, 0, len(recs))
	for _, r := range recs {
		w, err := r.toWorkshift(false)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func decodeOne(payload []byte) (workshift.Workshift, error) {
	if len(payload) == 0 {
		return workshift.Workshift{}, errors.New("empty payload")
	}
	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return workshift.Workshift{}, err
	}
	return r.toWorkshift(true)
}

// decodeID accepts either a record carrying _id or a bare id string.
func decodeID(payload []byte) (uuid.UUID, error) {
	if len(payload) == 0 {
		return uuid.Nil, errors.New("empty payload")
	}
	if payload[0] == '"' {
		var id uuid.UUID
		if err := json.Unmarshal(payload, &id); err != nil {
			return uuid.Nil, err
		}
		if id == uuid.Nil {
			return uuid.Nil, errors.New("nil id")
		}
		return id, nil
	}
	var r struct {
		ID uuid.UUID `json:"_id"`
	}
	if err := json.Unmarshal(payload, &r); err != nil {
		return uuid.Nil, err
	}
	if r.ID == uuid.Nil {
		return uuid.Nil, errors.New("missing _id")
	}
	return r.ID, nil
}

// Encode renders e as a self-describing envelope and returns the routing
// key it should be published with.
func Encode(e Event) (string, []byte, error) {
	env := map[string]any{"event": e.Kind()}

	switch ev := e.(type) {
	case SyncEvent:
		env["workshifts"] = records(ev.Workshifts)
	case ManyEvent:
		env["workshifts"] = records(ev.Workshifts)
	case CreatedEvent:
		env["workshift"] = fromWorkshift(ev.Workshift)
	case UpdatedEvent:
		env["workshift"] = fromWorkshift(ev.Workshift)
	case DeletedEvent:
		env["id"] = ev.ID
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownEvent, e)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return string(e.Kind()), body, nil
}

func records(shifts []workshift.Workshift) []record {
	out := make([]record, 0, len(shifts))
	for _, w := range shifts {
		out = append(out, fromWorkshift(w))
	}
	return out
}
