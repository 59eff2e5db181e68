package grant

import (
	"context"
	"sync"

	"gridconsent/internal/scope"
	"gridconsent/pkg/platform/sentinel"
)

// MemoryStore keeps grants in process memory for tests and the memory runner.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[ID]Grant
	bySource map[sourceKey]ID
}

type sourceKey struct {
	sourceType SourceType
	sourceID   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[ID]Grant),
		bySource: make(map[sourceKey]ID),
	}
}

func (s *MemoryStore) Insert(_ context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sourceKey{sourceType: g.SourceType, sourceID: g.SourceID}
	if _, ok := s.bySource[key]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[g.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[g.ID] = cloneGrant(g)
	s.bySource[key] = g.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id ID) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneGrant(&g)
	return &out, nil
}

func (s *MemoryStore) FindBySource(_ context.Context, sourceType SourceType, sourceID string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySource[sourceKey{sourceType: sourceType, sourceID: sourceID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	g := s.byID[id]
	out := cloneGrant(&g)
	return &out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id ID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if g.Status != StatusActive {
		return sentinel.ErrInvalidState
	}
	g.Status = status
	s.byID[id] = g
	return nil
}

func cloneGrant(g *Grant) Grant {
	out := *g
	out.Scopes = append([]scope.Scope(nil), g.Scopes...)
	return out
}
