package sensor_simulator

import (
	"sync"

	"github.com/LeonardoBeccarini/sdcc_field_planner/internal/model/entities"
)

// FieldStore owns the live field. The moisture updater is the only writer
// (Mutate); everyone else reads deep copies through Snapshot. Replace swaps
// in a freshly generated field after a run.
type FieldStore struct {
	mu    sync.RWMutex
	field *entities.Field
	gen   uint64 // bumped on Replace
}

func NewFieldStore() *FieldStore {
	return &FieldStore{}
}

// Replace installs a copy of f; the caller keeps ownership of f.
func (s *FieldStore) Replace(f *entities.Field) {
	c := f.Clone()
	s.mu.Lock()
	s.field = c
	s.gen++
	s.mu.Unlock()
}

// Snapshot returns a deep copy, or nil before the first Replace.
func (s *FieldStore) Snapshot() *entities.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.field.Clone()
}

// SnapshotWithGeneration returns a deep copy together with the generation it
// belongs to, both read under one lock.
func (s *FieldStore) SnapshotWithGeneration() (*entities.Field, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.field.Clone(), s.gen
}

// Mutate runs fn under the write lock. It reports false when the store is empty.
func (s *FieldStore) Mutate(fn func(f *entities.Field)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.field == nil {
		return false
	}
	fn(s.field)
	return true
}

// Generation increases every time a new field is installed.
func (s *FieldStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}
