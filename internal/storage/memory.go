package storage

import (
	"context"
	"sync"

	"gridconsent/internal/document"
	"gridconsent/internal/grant"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/scope"
	domainerrors "gridconsent/pkg/domain-errors"
)

// MemoryRunner serializes units of work over in-memory stores with a coarse
// mutex. It approximates transactional atomicity well enough for tests and
// local development; rollback of partially applied writes is not supported,
// which is acceptable because callers treat any error as fatal to the unit.
type MemoryRunner struct {
	mu sync.Mutex
	tx memoryTx
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{
		tx: memoryTx{
			parties:   party.NewMemoryStore(),
			scopes:    scope.NewMemoryStore(),
			requests:  request.NewMemoryStore(),
			grants:    grant.NewMemoryStore(),
			documents: document.NewMemoryStore(),
		},
	}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&r.tx)
}

// Stores exposes the underlying stores for test seeding and assertions
// outside a transaction.
func (r *MemoryRunner) Stores() Tx { return &r.tx }

type memoryTx struct {
	parties   *party.MemoryStore
	scopes    *scope.MemoryStore
	requests  *request.MemoryStore
	grants    *grant.MemoryStore
	documents *document.MemoryStore
}

func (t *memoryTx) Parties() party.Store      { return t.parties }
func (t *memoryTx) Scopes() scope.Store       { return t.scopes }
func (t *memoryTx) Requests() request.Store   { return t.requests }
func (t *memoryTx) Grants() grant.Store       { return t.grants }
func (t *memoryTx) Documents() document.Store { return t.documents }
