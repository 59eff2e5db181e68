// Package service implements the document signing use cases: generating the
// contract PDF for a request and driving the prepare/digest/sign/embed
// pipeline, with the guards that keep one request from yielding two signed
// contracts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"gridconsent/internal/document"
	"gridconsent/internal/document/metrics"
	"gridconsent/internal/document/pades"
	"gridconsent/internal/document/render"
	"gridconsent/internal/document/signer"
	"gridconsent/internal/grant"
	grantservice "gridconsent/internal/grant/service"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

var tracer = otel.Tracer("gridconsent/internal/document/service")

// GrantCreator is the slice of the grant service the pipeline needs.
type GrantCreator interface {
	CreateFromDocument(ctx context.Context, tx storage.Tx, documentID string, signerParty, requestedBy party.ID, terms grantservice.Terms) (*grant.Grant, error)
}

// Service drives contract generation and signing.
type Service struct {
	runner   storage.Runner
	orch     *request.Orchestrator
	renderer *render.Renderer
	signer   signer.Signer
	grants   GrantCreator
	metrics  *metrics.Metrics
	log      *slog.Logger
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMetrics enables prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the document service.
func NewService(runner storage.Runner, orch *request.Orchestrator, renderer *render.Renderer, sgn signer.Signer, grants GrantCreator, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		runner:   runner,
		orch:     orch,
		renderer: renderer,
		signer:   sgn,
		grants:   grants,
		log:      log,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate renders the contract for a pending contract request and persists
// it unsigned. A second generation for the same request is refused: a signed
// contract means the authorization was already granted, an unsigned one means
// a submission is still pending.
func (s *Service) Generate(ctx context.Context, requestID request.ID) (*document.SignableDocument, error) {
	ctx, span := tracer.Start(ctx, "document.Generate")
	defer span.End()

	var out *document.SignableDocument
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		req, err := s.contractRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := s.guardFreshRequest(ctx, tx, req); err != nil {
			return err
		}

		data, err := s.contractData(req)
		if err != nil {
			return err
		}
		content, err := s.renderer.Contract(data)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		doc := &document.SignableDocument{
			ID:        document.NewID(),
			RequestID: req.ID,
			Title:     data.Title,
			Content:   content,
			Signed:    false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Documents().Insert(ctx, doc); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return domainerrors.New(domainerrors.CodePendingSubmission, "a contract for this request is pending submission")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "insert document")
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementGenerated()
	s.log.InfoContext(ctx, "contract generated",
		slog.String("document_id", out.ID.String()),
		slog.String("request_id", requestID.String()))
	return out, nil
}

// Sign verifies the submitted copy against the stored contract, runs the
// signing pipeline, and persists the signed artifact together with its
// derived grant in one transaction. A signer failure persists nothing.
func (s *Service) Sign(ctx context.Context, id document.ID, acting party.ID, title string, content []byte) (*document.SignableDocument, *grant.Grant, error) {
	ctx, span := tracer.Start(ctx, "document.Sign")
	defer span.End()

	var (
		doc *document.SignableDocument
		req *request.AuthorizationRequest
	)
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		doc, req, err = s.signable(ctx, tx, id, acting)
		if err != nil {
			return err
		}
		if !doc.Matches(id, title, content) {
			return domainerrors.New(domainerrors.CodeValidation, "submitted contract does not match the generated one")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// The external signer runs outside any transaction. Its failure leaves
	// the stored document untouched.
	prepared, err := pades.Prepare(doc.Content, pades.SignatureParameters{
		SignerName:  s.consumerName(req),
		Reason:      doc.Title,
		SigningTime: s.clock().UTC(),
	})
	if err != nil {
		return nil, nil, err
	}
	digest, err := prepared.Digest()
	if err != nil {
		return nil, nil, err
	}
	signature, err := s.signer.Sign(ctx, digest)
	if err != nil {
		s.metrics.IncrementSignerFailure()
		return nil, nil, err
	}
	signedBytes, err := prepared.Embed(signature)
	if err != nil {
		return nil, nil, err
	}

	handler, err := s.orch.HandlerFor(req.Type)
	if err != nil {
		return nil, nil, err
	}
	terms, err := handler.GrantTerms(req)
	if err != nil {
		return nil, nil, err
	}

	var derived *grant.Grant
	err = s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		// Re-read under the transaction: another signer may have won the race
		// while we were talking to the key service.
		fresh, _, err := s.signable(ctx, tx, id, acting)
		if err != nil {
			return err
		}

		fresh.Content = signedBytes
		fresh.Signed = true
		fresh.UpdatedAt = s.clock().UTC()
		if err := tx.Documents().Update(ctx, fresh); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// A concurrent signer committed between our read and write.
				return domainerrors.New(domainerrors.CodeAlreadyGranted, "contract was signed concurrently")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "persist signed document")
		}

		derived, err = s.grants.CreateFromDocument(ctx, tx, fresh.ID.String(), acting, req.RequestedBy, grantservice.Terms{
			Scopes:    terms.Scopes,
			ValidFrom: terms.ValidFrom,
			ValidTo:   terms.ValidTo,
		})
		if err != nil {
			return err
		}
		doc = fresh
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncrementSigned()
	s.log.InfoContext(ctx, "contract signed",
		slog.String("document_id", id.String()),
		slog.String("grant_id", derived.ID.String()))
	return doc, derived, nil
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, id document.ID) (*document.SignableDocument, error) {
	var out *document.SignableDocument
	err := s.runner.RunInTx(ctx, func(tx storage.Tx) error {
		doc, err := tx.Documents().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domainerrors.New(domainerrors.CodeNotFound, "document not found")
			}
			return domainerrors.Wrap(err, domainerrors.CodeDependency, "find document")
		}
		out = doc
		return nil
	})
	return out, err
}

// signable loads the document and its request and enforces the signing
// preconditions: the document is unsigned and the acting party is the one the
// authorization is requested from.
func (s *Service) signable(ctx context.Context, tx storage.Tx, id document.ID, acting party.ID) (*document.SignableDocument, *request.AuthorizationRequest, error) {
	doc, err := tx.Documents().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "document not found")
		}
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "find document")
	}
	if doc.Signed {
		return nil, nil, domainerrors.New(domainerrors.CodeAlreadyGranted, "contract is already signed and granted")
	}
	req, err := tx.Requests().FindByID(ctx, doc.RequestID)
	if err != nil {
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "find document's request")
	}
	if acting != req.RequestedFrom {
		return nil, nil, domainerrors.New(domainerrors.CodeNotAuthorized, "only the party the authorization is requested from may sign")
	}
	return doc, req, nil
}

// contractRequest loads the request and checks it belongs to the signed
// contract process.
func (s *Service) contractRequest(ctx context.Context, tx storage.Tx, id request.ID) (*request.AuthorizationRequest, error) {
	req, err := tx.Requests().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "request not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDependency, "find request")
	}
	if req.Type != request.TypeChangeOfSupplierContract {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "request type %q has no signable contract", req.Type)
	}
	if req.Terminal() {
		return nil, domainerrors.Newf(domainerrors.CodeAlreadyProcessed, "request is already %s", req.Status)
	}
	return req, nil
}

// guardFreshRequest refuses generation when the request already produced a
// contract or a grant.
func (s *Service) guardFreshRequest(ctx context.Context, tx storage.Tx, req *request.AuthorizationRequest) error {
	existing, err := tx.Documents().FindByRequestID(ctx, req.ID)
	if err == nil {
		if existing.Signed {
			return domainerrors.New(domainerrors.CodeAlreadyGranted, "a signed contract already exists for this request")
		}
		return domainerrors.New(domainerrors.CodePendingSubmission, "a contract for this request is pending submission")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return domainerrors.Wrap(err, domainerrors.CodeDependency, "look up existing contract")
	}

	if _, err := tx.Grants().FindBySource(ctx, grant.SourceRequest, req.ID.String()); err == nil {
		return domainerrors.New(domainerrors.CodeAlreadyGranted, "this request was already granted")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return domainerrors.Wrap(err, domainerrors.CodeDependency, "look up existing grant")
	}
	return nil
}

func (s *Service) contractData(req *request.AuthorizationRequest) (render.ContractData, error) {
	get := func(key string) (string, error) {
		v, ok := req.Property(key)
		if !ok || v == "" {
			return "", domainerrors.Newf(domainerrors.CodeInternal, "request %s is missing the %s property", req.ID, key)
		}
		return v, nil
	}
	title, err := get(request.PropContractTitle)
	if err != nil {
		return render.ContractData{}, err
	}
	consumer, err := get(request.PropConsumerName)
	if err != nil {
		return render.ContractData{}, err
	}
	mpid, err := get(request.PropMeteringPointID)
	if err != nil {
		return render.ContractData{}, err
	}
	orgNum, err := get(request.PropSupplierOrgNumber)
	if err != nil {
		return render.ContractData{}, err
	}
	supplier, _ := req.Property(request.PropBalanceSupplierName)

	return render.ContractData{
		Title:             title,
		ConsumerName:      consumer,
		MeteringPointID:   mpid,
		SupplierName:      supplier,
		SupplierOrgNumber: orgNum,
		RequestID:         req.ID.String(),
		IssuedAt:          s.clock().UTC(),
	}, nil
}

func (s *Service) consumerName(req *request.AuthorizationRequest) string {
	name, _ := req.Property(request.PropConsumerName)
	return name
}
