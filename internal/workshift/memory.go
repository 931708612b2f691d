package workshift

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	shifts map[uuid.UUID]Workshift
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shifts: make(map[uuid.UUID]Workshift)}
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Workshift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.shifts[id]
	if !ok {
		return nil, ErrWorkshiftNotFound
	}
	return &w, nil
}

func (m *MemoryStore) ListOverlapping(_ context.Context, clinicID, doctorID uuid.UUID, from, to time.Time) ([]Workshift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Workshift
	for _, w := range m.shifts {
		if w.ClinicID == clinicID && w.DoctorID == doctorID && w.Overlaps(from, to) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *MemoryStore) ReplaceAll(_ context.Context, shifts []Workshift) error {
	next := make(map[uuid.UUID]Workshift, len(shifts))
	for _, w := range shifts {
		next[w.ID] = w
	}
	m.mu.Lock()
	m.shifts = next
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) InsertIfAbsent(_ context.Context, w Workshift) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[w.ID]; ok {
		return false, nil
	}
	m.shifts[w.ID] = w
	return true, nil
}

func (m *MemoryStore) Upsert(_ context.Context, w Workshift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts[w.ID] = w
	return nil
}

func (m *MemoryStore) UpsertMany(_ context.Context, shifts []Workshift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range shifts {
		m.shifts[w.ID] = w
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shifts[id]; !ok {
		return false, nil
	}
	delete(m.shifts, id)
	return true, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shifts), nil
}
