package scope

import (
	"context"
	"sync"

	"gridconsent/pkg/platform/sentinel"
)

// MemoryStore keeps scopes in process memory for tests and the memory runner.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[Key]Scope
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[Key]Scope)}
}

func (s *MemoryStore) FindByKey(_ context.Context, key Key) (Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.byKey[key]
	if !ok {
		return Scope{}, sentinel.ErrNotFound
	}
	return sc, nil
}

func (s *MemoryStore) Insert(_ context.Context, sc Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[sc.Key()]; ok {
		return sentinel.ErrConflict
	}
	s.byKey[sc.Key()] = sc
	return nil
}
