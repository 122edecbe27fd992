package store

import (
	"sort"
	"sync"

	"clinicware.com/callboard/internal/clinic"
)

// EntityStore is the in-memory source of truth on one client: every active
// patient record plus the per-station call slots. Writers are the dispatch
// engine and the sync layer's remote merge; readers (queue view, estimator,
// handlers) only ever see clones.
type EntityStore struct {
	mu       sync.RWMutex
	patients map[string]*clinic.Patient
	slots    map[clinic.Station]string
}

// NewEntityStore returns an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		patients: make(map[string]*clinic.Patient),
		slots:    make(map[clinic.Station]string),
	}
}

// Put inserts or replaces a patient record.
func (s *EntityStore) Put(p *clinic.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p.Clone()
}

// Get returns a copy of the patient with the given id.
func (s *EntityStore) Get(id string) (*clinic.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Remove deletes a patient and vacates any slot the patient occupies.
// It reports whether the patient existed.
func (s *EntityStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[id]; !ok {
		return false
	}
	delete(s.patients, id)
	for st, occupant := range s.slots {
		if occupant == id {
			delete(s.slots, st)
		}
	}
	return true
}

// All returns copies of every active patient ordered by registration time
// (id as tie-break) so derived views are deterministic for identical sets.
func (s *EntityStore) All() []*clinic.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*clinic.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of active patients.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients)
}

// TakeSlot makes the patient the current occupant of the station's call
// slot and returns the id of the occupant that was displaced, if any.
func (s *EntityStore) TakeSlot(st clinic.Station, patientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.slots[st]
	s.slots[st] = patientID
	if had && prev == patientID {
		return "", false
	}
	return prev, had
}

// ClearSlot vacates the station's call slot.
func (s *EntityStore) ClearSlot(st clinic.Station) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, st)
}

// SlotOccupant returns a copy of the patient currently holding the
// station's call slot.
func (s *EntityStore) SlotOccupant(st clinic.Station) (*clinic.Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slots[st]
	if !ok {
		return nil, false
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// SlotHeldBy returns the station whose slot the patient occupies, if any.
func (s *EntityStore) SlotHeldBy(patientID string) (clinic.Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for st, occupant := range s.slots {
		if occupant == patientID {
			return st, true
		}
	}
	return "", false
}

// Snapshot is the serializable image of the store used for crash recovery.
type Snapshot struct {
	Patients []*clinic.Patient         `json:"patients"`
	Slots    map[clinic.Station]string `json:"slots"`
}

// Snapshot captures the full store state.
func (s *EntityStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Patients: make([]*clinic.Patient, 0, len(s.patients)),
		Slots:    make(map[clinic.Station]string, len(s.slots)),
	}
	for _, p := range s.patients {
		snap.Patients = append(snap.Patients, p.Clone())
	}
	for st, id := range s.slots {
		snap.Slots[st] = id
	}
	return snap
}

// Restore replaces the store contents with the snapshot.
func (s *EntityStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = make(map[string]*clinic.Patient, len(snap.Patients))
	for _, p := range snap.Patients {
		s.patients[p.ID] = p.Clone()
	}
	s.slots = make(map[clinic.Station]string, len(snap.Slots))
	for st, id := range snap.Slots {
		if _, ok := s.patients[id]; ok {
			s.slots[st] = id
		}
	}
}
