// Package service implements the grant lifecycle: creation from an accepted
// request or a signed document, one-way consumption, and scope disclosure.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"gridconsent/internal/grant"
	"gridconsent/internal/grant/metrics"
	"gridconsent/internal/party"
	"gridconsent/internal/scope"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

var tracer = otel.Tracer("gridconsent/internal/grant/service")

// Terms carries the business-process overrides for a new grant. Zero values
// fall back to the defaults (validFrom=now, validTo=now+1y).
type Terms struct {
	Scopes    []scope.Key
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// Parties names the three roles on a grant.
type Parties struct {
	GrantedFor party.ID
	GrantedBy  party.ID
	GrantedTo  party.ID
}

// Service drives grant state. Creation runs inside the caller's transaction;
// consume and getScopes open their own.
type Service struct {
	runner        storage.Runner
	systemPartyID party.ID
	metrics       *metrics.Metrics
	log           *slog.Logger
	clock         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMetrics attaches grant metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the grant service. systemPartyID is the designated
// consent-management system actor; it is the only party allowed to consume.
func NewService(runner storage.Runner, systemPartyID party.ID, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		runner:        runner,
		systemPartyID: systemPartyID,
		log:           log,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFromSource inserts a grant derived from the given source inside tx,
// resolving every scope key through the registry first. When a grant already
// exists for (sourceType, sourceID) the existing grant is returned unchanged;
// creation is idempotent per source.
func (s *Service) CreateFromSource(ctx context.Context, tx storage.Tx, sourceType grant.SourceType, sourceID string, p Parties, terms Terms) (*grant.Grant, error) {
	if len(terms.Scopes) == 0 {
		return nil, domainerrors.New(domainerrors.CodeInternal, "grant creation requires at least one scope")
	}

	existing, err := tx.Grants().FindBySource(ctx, sourceType, sourceID)
	if err == nil {
		s.metrics.IncrementDuplicateSource()
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "look up grant by source")
	}

	now := s.clock().UTC()
	scopes := make([]scope.Scope, 0, len(terms.Scopes))
	for _, key := range terms.Scopes {
		sc, err := scope.FindOrCreate(ctx, tx.Scopes(), key, now)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}

	g := &grant.Grant{
		ID:         grant.NewID(),
		Status:     grant.StatusActive,
		GrantedFor: p.GrantedFor,
		GrantedBy:  p.GrantedBy,
		GrantedTo:  p.GrantedTo,
		GrantedAt:  now,
		ValidFrom:  now,
		ValidTo:    now.Add(grant.DefaultValidity),
		SourceType: sourceType,
		SourceID:   sourceID,
		Scopes:     scopes,
	}
	if terms.ValidFrom != nil {
		g.ValidFrom = terms.ValidFrom.UTC()
	}
	if terms.ValidTo != nil {
		g.ValidTo = terms.ValidTo.UTC()
	}
	if g.ValidTo.Before(g.ValidFrom) {
		return nil, domainerrors.New(domainerrors.CodeValidation, "grant validFrom must not be after validTo")
	}

	if err := tx.Grants().Insert(ctx, g); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race against a concurrent creator for the same source.
			existing, ferr := tx.Grants().FindBySource(ctx, sourceType, sourceID)
			if ferr != nil {
				return nil, domainerrors.Wrap(ferr, domainerrors.CodeDependency, "re-select grant after conflict")
			}
			s.metrics.IncrementDuplicateSource()
			return existing, nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "insert grant")
	}

	s.metrics.IncrementCreated(string(sourceType))
	s.log.InfoContext(ctx, "grant created",
		slog.String("grant_id", g.ID.String()),
		slog.String("source_type", string(sourceType)),
		slog.String("source_id", sourceID))
	return g, nil
}

// CreateFromRequest derives a grant from an accepted request. The approver
// becomes grantedBy; the party the authorization was requested from becomes
// grantedFor; the submitter becomes grantedTo.
func (s *Service) CreateFromRequest(ctx context.Context, tx storage.Tx, requestID string, requestedBy, requestedFrom, approver party.ID, terms Terms) (*grant.Grant, error) {
	return s.CreateFromSource(ctx, tx, grant.SourceRequest, requestID, Parties{
		GrantedFor: requestedFrom,
		GrantedBy:  approver,
		GrantedTo:  requestedBy,
	}, terms)
}

// CreateFromDocument derives a grant from a signed document. The signer
// becomes grantedBy and grantedFor; the requesting party becomes grantedTo.
func (s *Service) CreateFromDocument(ctx context.Context, tx storage.Tx, documentID string, signer, requestedBy party.ID, terms Terms) (*grant.Grant, error) {
	return s.CreateFromSource(ctx, tx, grant.SourceDocument, documentID, Parties{
		GrantedFor: signer,
		GrantedBy:  signer,
		GrantedTo:  requestedBy,
	}, terms)
}

// Consume transitions a grant to Exhausted. Only the designated system actor
// may consume; the transition is one-way and rejected on expired or already
// exhausted grants.
func (s *Service) Consume(ctx context.Context, id grant.ID, acting party.ID, newStatus grant.Status) (*grant.Grant, error) {
	ctx, span := tracer.Start(ctx, "grant.Consume")
	defer span.End()

	var out *grant.Grant
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		g, err := tx.Grants().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "grant not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "find grant")
		}
		if acting != s.systemPartyID {
			return domainerrors.New(domainerrors.CodeNotAuthorized, "only the consent-management system actor may consume a grant")
		}
		if newStatus != grant.StatusExhausted {
			return domainerrors.Newf(domainerrors.CodeIllegalTransition, "cannot transition grant to %q", newStatus)
		}
		if s.clock().UTC().After(g.ValidTo) {
			return domainerrors.New(domainerrors.CodeExpired, "grant validity window has passed")
		}
		if g.Status != grant.StatusActive {
			return domainerrors.Newf(domainerrors.CodeIllegalState, "grant is %q, not Active", g.Status)
		}
		if err := tx.Grants().UpdateStatus(ctx, id, grant.StatusExhausted); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// A concurrent consume committed between our read and write.
				return domainerrors.New(domainerrors.CodeIllegalState, "grant was consumed concurrently")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "update grant status")
		}
		g.Status = grant.StatusExhausted
		out = g
		return nil
	})
	if err != nil {
		s.metrics.IncrementConsume("rejected")
		return nil, err
	}
	s.metrics.IncrementConsume("exhausted")
	s.log.InfoContext(ctx, "grant consumed", slog.String("grant_id", id.String()))
	return out, nil
}

// GetScopes discloses a grant's scopes to its grantedFor or grantedTo party,
// or to the system actor. The check lives here, not in transport, so it holds
// for every caller.
func (s *Service) GetScopes(ctx context.Context, id grant.ID, acting party.ID) ([]scope.Scope, error) {
	ctx, span := tracer.Start(ctx, "grant.GetScopes")
	defer span.End()

	var out []scope.Scope
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		g, err := tx.Grants().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "grant not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "find grant")
		}
		if acting != g.GrantedFor && acting != g.GrantedTo && acting != s.systemPartyID {
			return domainerrors.New(domainerrors.CodeNotAuthorized, "party is not a participant of this grant")
		}
		out = g.Scopes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a grant by id without an authorization filter. Intended for
// internal composition (request views); transport must not expose it raw.
func (s *Service) Get(ctx context.Context, id grant.ID) (*grant.Grant, error) {
	var out *grant.Grant
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		g, err := tx.Grants().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "grant not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "find grant")
		}
		out = g
		return nil
	})
	return out, err
}
