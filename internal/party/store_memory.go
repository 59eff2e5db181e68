package party

import (
	"context"
	"sync"

	"gridconsent/pkg/platform/sentinel"
)

// MemoryStore keeps parties in process memory. Used by tests and the
// memory-backed runner; mirrors the uniqueness rules of the SQL schema.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[memoryKey]Party
	byID  map[ID]Party
}

type memoryKey struct {
	typ        Type
	externalID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[memoryKey]Party),
		byID:  make(map[ID]Party),
	}
}

func (s *MemoryStore) FindByExternal(_ context.Context, typ Type, externalID string) (Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[memoryKey{typ: typ, externalID: externalID}]
	if !ok {
		return Party{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id ID) (Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Party{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) Insert(_ context.Context, p Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{typ: p.Type, externalID: p.ExternalResourceID}
	if _, ok := s.byKey[key]; ok {
		return sentinel.ErrConflict
	}
	s.byKey[key] = p
	s.byID[p.ID] = p
	return nil
}
