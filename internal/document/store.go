package document

import (
	"context"

	"gridconsent/internal/request"
)

// Store persists signable documents. At most one document exists per request;
// implementations return sentinel.ErrNotFound / sentinel.ErrConflict.
type Store interface {
	Insert(ctx context.Context, d *SignableDocument) error
	FindByID(ctx context.Context, id ID) (*SignableDocument, error)
	FindByRequestID(ctx context.Context, requestID request.ID) (*SignableDocument, error)
	// Update replaces content, signed flag and updatedAt. It is a guarded
	// write: a row that is already signed returns sentinel.ErrInvalidState
	// unchanged.
	Update(ctx context.Context, d *SignableDocument) error
}
