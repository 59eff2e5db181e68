package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

// Directory is the external person directory. It exchanges a national identity
// number for the canonical internal person identifier.
type Directory interface {
	FindOrCreateByNIN(ctx context.Context, nin string) (string, error)
}

// Resolver maps typed external identifiers onto internal party records,
// creating them on first sight. Resolution is idempotent: repeated calls with
// the same identifier yield the same internal party ID.
type Resolver struct {
	directory Directory
	clock     func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the time source for testability.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewResolver constructs a Resolver. The directory is only consulted for
// national-identity-number identifiers.
func NewResolver(directory Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		directory: directory,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the stable internal party for the given identifier.
//
// National identity numbers are checksum-validated locally before any external
// call, then exchanged for a canonical person ID through the directory.
// Organization numbers and global location numbers resolve purely locally.
func (r *Resolver) Resolve(ctx context.Context, store Store, ident ExternalIdentifier) (Party, error) {
	switch ident.Kind {
	case KindNationalIdentityNumber:
		if !IsValidNIN(ident.Value) {
			return Party{}, domainerrors.New(domainerrors.CodeValidation, "invalid national identity number")
		}
		personID, err := r.directory.FindOrCreateByNIN(ctx, ident.Value)
		if err != nil {
			if domainerrors.HasCode(err, domainerrors.CodeValidation) {
				return Party{}, err
			}
			return Party{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "person resolution failed")
		}
		return r.findOrInsert(ctx, store, TypePerson, personID)

	case KindOrganizationNumber:
		if !allDigits(ident.Value, 9) {
			return Party{}, domainerrors.New(domainerrors.CodeValidation, "organization number must be 9 digits")
		}
		return r.findOrInsert(ctx, store, TypeOrganization, ident.Value)

	case KindGlobalLocationNumber:
		if !allDigits(ident.Value, 13) {
			return Party{}, domainerrors.New(domainerrors.CodeValidation, "global location number must be 13 digits")
		}
		return r.findOrInsert(ctx, store, TypeOrganizationEntity, ident.Value)

	case KindSystemName:
		if ident.Value == "" {
			return Party{}, domainerrors.New(domainerrors.CodeValidation, "system name must not be blank")
		}
		return r.findOrInsert(ctx, store, TypeSystem, ident.Value)

	default:
		return Party{}, domainerrors.Newf(domainerrors.CodeValidation, "unknown identifier kind %q", ident.Kind)
	}
}

// findOrInsert is the optimistic insert-or-reselect: look up, attempt insert,
// and on a uniqueness conflict (concurrent insert) re-select the winner. No
// application-level locking.
func (r *Resolver) findOrInsert(ctx context.Context, store Store, typ Type, externalID string) (Party, error) {
	existing, err := store.FindByExternal(ctx, typ, externalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return Party{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "party lookup failed")
	}

	p := Party{
		ID:                 NewID(),
		Type:               typ,
		ExternalResourceID: externalID,
		CreatedAt:          r.clock().UTC(),
	}
	err = store.Insert(ctx, p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return Party{}, domainerrors.Wrap(err, domainerrors.CodeDependency, "party insert failed")
	}

	winner, err := store.FindByExternal(ctx, typ, externalID)
	if err != nil {
		return Party{}, domainerrors.Wrap(err, domainerrors.CodeDependency,
			fmt.Sprintf("party reselect after conflict failed for %s %s", typ, externalID))
	}
	return winner, nil
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
