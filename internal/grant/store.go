package grant

import "context"

// Store persists grants together with their scope associations. Insert writes
// the grant row and its join rows as one unit; callers run it inside the
// enclosing transaction. Implementations return sentinel.ErrNotFound /
// sentinel.ErrConflict; callers translate.
type Store interface {
	Insert(ctx context.Context, g *Grant) error
	FindByID(ctx context.Context, id ID) (*Grant, error)
	FindBySource(ctx context.Context, sourceType SourceType, sourceID string) (*Grant, error)
	// UpdateStatus transitions a grant out of Active. It is a guarded write:
	// when the row is no longer Active it changes nothing and returns
	// sentinel.ErrInvalidState.
	UpdateStatus(ctx context.Context, id ID, status Status) error
}
