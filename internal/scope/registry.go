package scope

import (
	"context"
	"errors"
	"time"

	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

// FindOrCreate resolves the canonical scope row for key, creating it lazily.
// Same optimistic insert-or-reselect as party resolution: a uniqueness
// conflict from a concurrent insert is settled by re-selecting the winner.
// The store passed in is expected to be bound to the enclosing transaction.
func FindOrCreate(ctx context.Context, store Store, key Key, now time.Time) (Scope, error) {
	if key.ResourceType == "" || key.ResourceID == "" || key.PermissionType == "" {
		return Scope{}, domainerrors.New(domainerrors.CodeValidation, "scope key must be fully specified")
	}

	existing, err := store.FindByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return Scope{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "scope lookup failed")
	}

	sc := Scope{
		ID:             NewID(),
		ResourceType:   key.ResourceType,
		ResourceID:     key.ResourceID,
		PermissionType: key.PermissionType,
		CreatedAt:      now.UTC(),
	}
	err = store.Insert(ctx, sc)
	if err == nil {
		return sc, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return Scope{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "scope insert failed")
	}

	winner, err := store.FindByKey(ctx, key)
	if err != nil {
		return Scope{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "scope reselect after conflict failed")
	}
	return winner, nil
}
