package request

import (
	"context"
	"time"
)

// Store persists authorization requests. Implementations return
// sentinel.ErrNotFound / sentinel.ErrConflict; callers translate.
type Store interface {
	Insert(ctx context.Context, r *AuthorizationRequest) error
	FindByID(ctx context.Context, id ID) (*AuthorizationRequest, error)
	// Update rewrites the mutable columns (status, approvedBy, updatedAt). It
	// is a guarded write: only a Pending row may be updated, and a row that
	// already left Pending returns sentinel.ErrInvalidState unchanged.
	Update(ctx context.Context, r *AuthorizationRequest) error
	// ExpireOverdue marks every Pending request whose validTo has passed as
	// Expired and returns the ids of the rows it touched.
	ExpireOverdue(ctx context.Context, now time.Time) ([]ID, error)
}
