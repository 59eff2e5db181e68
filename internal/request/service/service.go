// Package service drives the authorization request lifecycle: creation with
// per-type validation and party resolution, the single Pending exit, and the
// overdue sweep.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"gridconsent/internal/audit"
	"gridconsent/internal/grant"
	grantservice "gridconsent/internal/grant/service"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/request/metrics"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

var tracer = otel.Tracer("gridconsent/internal/request/service")

// GrantCreator is the slice of the grant service the lifecycle needs: deriving
// a grant from an accepted request inside the same transaction.
type GrantCreator interface {
	CreateFromRequest(ctx context.Context, tx storage.Tx, requestID string, requestedBy, requestedFrom, approver party.ID, terms grantservice.Terms) (*grant.Grant, error)
}

// View is a request enriched with the id of its derived grant, looked up
// through the (sourceType=Request, sourceId) back-reference. The grant id is
// never stored on the request row.
type View struct {
	Request *request.AuthorizationRequest
	GrantID *grant.ID
}

// Service orchestrates the request state machine.
type Service struct {
	runner   storage.Runner
	orch     *request.Orchestrator
	resolver *party.Resolver
	grants   GrantCreator
	metrics  *metrics.Metrics
	auditor  audit.Publisher
	log      *slog.Logger
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMetrics attaches request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor attaches an audit publisher. The sweep is the only decision
// path with no transport handler above it, so its events are emitted here.
func WithAuditor(a audit.Publisher) Option {
	return func(s *Service) { s.auditor = a }
}

// NewService constructs the request service.
func NewService(runner storage.Runner, orch *request.Orchestrator, resolver *party.Resolver, grants GrantCreator, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		orch:     orch,
		resolver: resolver,
		grants:   grants,
		auditor:  audit.Noop{},
		log:      log,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the payload through the type's handler, resolves all three
// party identifiers, and persists a Pending request. Validation failures name
// the offending field and touch no state.
func (s *Service) Create(ctx context.Context, p request.Payload) (*request.AuthorizationRequest, error) {
	ctx, span := tracer.Start(ctx, "request.Create")
	defer span.End()
	start := s.clock()

	handler, err := s.orch.HandlerFor(p.Type)
	if err != nil {
		return nil, err
	}
	cmd, err := handler.ValidateAndBuild(p)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	req := &request.AuthorizationRequest{
		ID:         request.NewID(),
		Type:       cmd.Type,
		Status:     request.StatusPending,
		ValidTo:    now.Add(request.DefaultValidity),
		CreatedAt:  now,
		UpdatedAt:  now,
		Properties: cmd.Properties,
	}
	if cmd.ValidTo != nil {
		req.ValidTo = cmd.ValidTo.UTC()
	}

	err = s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		by, err := s.resolver.Resolve(ctx, tx.Parties(), cmd.RequestedBy)
		if err != nil {
			return err
		}
		from, err := s.resolver.Resolve(ctx, tx.Parties(), cmd.RequestedFrom)
		if err != nil {
			return err
		}
		to, err := s.resolver.Resolve(ctx, tx.Parties(), cmd.RequestedTo)
		if err != nil {
			return err
		}
		req.RequestedBy = by.ID
		req.RequestedFrom = from.ID
		req.RequestedTo = to.ID

		if err := tx.Requests().Insert(ctx, req); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "insert request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCreated(string(req.Type))
	s.metrics.ObserveCreateLatency(s.clock().Sub(start))
	s.log.InfoContext(ctx, "authorization request created",
		slog.String("request_id", req.ID.String()),
		slog.String("type", string(req.Type)))
	return req, nil
}

// Accept moves a Pending request to Accepted and derives its grant within the
// same transaction. Only the requestedTo party may accept.
func (s *Service) Accept(ctx context.Context, id request.ID, acting party.ID) (*View, error) {
	ctx, span := tracer.Start(ctx, "request.Accept")
	defer span.End()

	var out View
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		req, err := s.pendingForDecision(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.clock().UTC().After(req.ValidTo) {
			return domainerrors.New(domainerrors.CodeExpired, "request validity window has passed")
		}
		if acting != req.RequestedTo {
			return domainerrors.New(domainerrors.CodeNotAuthorized, "only the requestedTo party may accept")
		}

		handler, err := s.orch.HandlerFor(req.Type)
		if err != nil {
			return err
		}
		terms, err := handler.GrantTerms(req)
		if err != nil {
			return err
		}

		req.Status = request.StatusAccepted
		req.ApprovedBy = &acting
		req.UpdatedAt = s.clock().UTC()
		if err := tx.Requests().Update(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// A concurrent decision committed between our read and write.
				return domainerrors.New(domainerrors.CodeAlreadyProcessed, "request was decided concurrently")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "update request")
		}

		g, err := s.grants.CreateFromRequest(ctx, tx, req.ID.String(), req.RequestedBy, req.RequestedFrom, acting, grantservice.Terms{
			Scopes:    terms.Scopes,
			ValidFrom: terms.ValidFrom,
			ValidTo:   terms.ValidTo,
		})
		if err != nil {
			return err
		}
		out.Request = req
		out.GrantID = &g.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDecision("accepted")
	s.log.InfoContext(ctx, "authorization request accepted",
		slog.String("request_id", id.String()),
		slog.String("grant_id", out.GrantID.String()))
	return &out, nil
}

// Reject moves a Pending request to Rejected. No grant is created.
func (s *Service) Reject(ctx context.Context, id request.ID, acting party.ID) (*request.AuthorizationRequest, error) {
	ctx, span := tracer.Start(ctx, "request.Reject")
	defer span.End()

	var out *request.AuthorizationRequest
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		req, err := s.pendingForDecision(ctx, tx, id)
		if err != nil {
			return err
		}
		if acting != req.RequestedTo {
			return domainerrors.New(domainerrors.CodeNotAuthorized, "only the requestedTo party may reject")
		}
		req.Status = request.StatusRejected
		req.UpdatedAt = s.clock().UTC()
		if err := tx.Requests().Update(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return domainerrors.New(domainerrors.CodeAlreadyProcessed, "request was decided concurrently")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "update request")
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDecision("rejected")
	s.log.InfoContext(ctx, "authorization request rejected", slog.String("request_id", id.String()))
	return out, nil
}

// Get returns the request together with its derived grant id, if any.
func (s *Service) Get(ctx context.Context, id request.ID) (*View, error) {
	var out View
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		req, err := tx.Requests().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "request not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "find request")
		}
		out.Request = req

		g, err := tx.Grants().FindBySource(ctx, grant.SourceRequest, req.ID.String())
		if err == nil {
			out.GrantID = &g.ID
			return nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return domainerrors.Wrap(err, domainerrors.CodeDependency, "find derived grant")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExpireOverdue marks every Pending request past its validTo as Expired,
// publishes an audit event per expired request, and returns the number of
// rows touched. The sweeper calls this periodically.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "request.ExpireOverdue")
	defer span.End()

	var ids []request.ID
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		ids, err = tx.Requests().ExpireOverdue(ctx, s.clock().UTC())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "expire overdue requests")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	n := int64(len(ids))
	s.metrics.ObserveExpiredSweep(n)
	for _, id := range ids {
		s.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionRequestExpired,
			Subject: id.String(),
		})
	}
	if n > 0 {
		s.log.InfoContext(ctx, "expired overdue requests", slog.Int64("count", n))
	}
	return n, nil
}

// pendingForDecision loads the request and enforces the single exit from
/// Pending: a terminal request surfaces AlreadyProcessed, never a silent
// second success.
func (s *Service) pendingForDecision(ctx context.Context, tx storage.Tx, id request.ID) (*request.AuthorizationRequest, error) {
	req, err := tx.Requests().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "request not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "find request")
	}
	if req.Terminal() {
		return nil, domainerrors.Newf(domainerrors.CodeAlreadyProcessed, "request is already %s", req.Status)
	}
	return req, nil
}
