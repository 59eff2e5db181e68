package request

import (
	"context"
	"sync"
	"time"

	"gridconsent/pkg/platform/sentinel"
)

// MemoryStore keeps requests in process memory for tests and the memory
// runner.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[ID]AuthorizationRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[ID]AuthorizationRequest)}
}

func (s *MemoryStore) Insert(_ context.Context, r *AuthorizationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = clone(r)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id ID) (*AuthorizationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&r)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, r *AuthorizationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != StatusPending {
		return sentinel.ErrInvalidState
	}
	s.byID[r.ID] = clone(r)
	return nil
}

func (s *MemoryStore) ExpireOverdue(_ context.Context, now time.Time) ([]ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []ID
	for id, r := range s.byID {
		if r.Status == StatusPending && now.After(r.ValidTo) {
			r.Status = StatusExpired
			r.UpdatedAt = now
			s.byID[id] = r
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func clone(r *AuthorizationRequest) AuthorizationRequest {
	out := *r
	out.Properties = append([]Property(nil), r.Properties...)
	if r.ApprovedBy != nil {
		approver := *r.ApprovedBy
		out.ApprovedBy = &approver
	}
	return out
}
