package party

import "context"

// Store persists party reference data. Implementations return
// sentinel.ErrNotFound / sentinel.ErrConflict; callers translate.
type Store interface {
	FindByExternal(ctx context.Context, typ Type, externalID string) (Party, error)
	FindByID(ctx context.Context, id ID) (Party, error)
	Insert(ctx context.Context, p Party) error
}
