package scope

import "context"

// Store persists scope reference data. Implementations return
// sentinel.ErrNotFound / sentinel.ErrConflict; callers translate.
type Store interface {
	FindByKey(ctx context.Context, key Key) (Scope, error)
	Insert(ctx context.Context, s Scope) error
}
