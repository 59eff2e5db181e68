// Package storage provides the transactional boundary every state transition
// runs inside: read current state, validate, write new state plus dependent
// rows, atomically. Concurrency correctness comes from the store's
// transaction and uniqueness-constraint guarantees, not application locks.
package storage

import (
	"context"

	"gridconsent/internal/document"
	"gridconsent/internal/grant"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/scope"
)

// Tx bundles the per-feature stores bound to one transaction.
type Tx interface {
	Parties() party.Store
	Scopes() scope.Store
	Requests() request.Store
	Grants() grant.Store
	Documents() document.Store
}

// Runner executes fn inside a transaction. Any error return rolls the whole
// unit back; there is no partial-commit or resumable-midway state.
type Runner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
