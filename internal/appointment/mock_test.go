package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

// -- Mock Repository --

type mockRepo struct {
	mu        sync.Mutex
	appts     map[uuid.UUID]*Appointment
	events    []EventLog
	createErr error
	listErr   error

	// stale, when set, is served by GetByID instead of the stored row.
	stale map[uuid.UUID]Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) put(a *Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appts[a.ID] = &cp
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.appts[a.ID]; ok {
		return nil, ErrAppointmentExists
	}
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[a.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) CreateMany(ctx context.Context, as []*Appointment) error {
	for _, a := range as {
		if _, err := m.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.stale[id]; ok {
		return &a, nil
	}
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentDate.Before(out[j].AppointmentDate) })
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment, prev Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if cur.Status != prev {
		return nil, ErrInvalidStatusTransition
	}
	cp := *a
	m.appts[a.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListOverlapping(_ context.Context, field OwnerField, ownerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Appointment
	for _, a := range m.appts {
		owner := a.PatientID
		if field == OwnerDoctor {
			owner = a.DoctorID
		}
		if owner != ownerID || a.Status == StatusCanceled {
			continue
		}
		if Overlaps(a.AppointmentDate, a.AppointmentEndDate, start, end) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPendingForDoctorDay(_ context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.ClinicID != clinicID || a.DoctorID != doctorID || a.Status != StatusPending {
			continue
		}
		if a.AppointmentDate.Before(from) || a.AppointmentDate.After(to) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.EventType)
	}
	return out
}

// -- Mock Locker --

type mockLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	lastKeys []string
	contend  bool
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (l *mockLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.contend {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	for _, k := range keys {
		if l.held[k] {
			l.mu.Unlock()
			return redisclient.ErrLockNotAcquired
		}
	}
	for _, k := range keys {
		l.held[k] = true
	}
	l.lastKeys = append([]string(nil), keys...)
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		for _, k := range keys {
			delete(l.held, k)
		}
		l.mu.Unlock()
	}()

	return fn(ctx)
}
