package document

import (
	"context"
	"sync"

	"gridconsent/internal/request"
	"gridconsent/pkg/platform/sentinel"
)

// MemoryStore keeps documents in process memory for tests and the memory
// runner.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[ID]SignableDocument
	byRequest map[request.ID]ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[ID]SignableDocument),
		byRequest: make(map[request.ID]ID),
	}
}

func (s *MemoryStore) Insert(_ context.Context, d *SignableDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byRequest[d.RequestID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[d.ID] = cloneDocument(d)
	s.byRequest[d.RequestID] = d.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id ID) (*SignableDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cloneDocument(&d)
	return &out, nil
}

func (s *MemoryStore) FindByRequestID(_ context.Context, requestID request.ID) (*SignableDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := s.byID[id]
	out := cloneDocument(&d)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, d *SignableDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Signed {
		return sentinel.ErrInvalidState
	}
	s.byID[d.ID] = cloneDocument(d)
	return nil
}

func cloneDocument(d *SignableDocument) SignableDocument {
	out := *d
	out.Content = append([]byte(nil), d.Content...)
	return out
}
