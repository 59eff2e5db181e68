package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gridconsent/internal/audit"
	"gridconsent/internal/grant"
	grantservice "gridconsent/internal/grant/service"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	"gridconsent/internal/scope"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/platform/sentinel"
)

// recordingPublisher captures emitted audit events for assertions.
type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) {
	p.events = append(p.events, e)
}

type RequestServiceSuite struct {
	suite.Suite
	runner *storage.MemoryRunner
	svc    *Service
	audit  *recordingPublisher
	now    time.Time
}

func TestRequestServiceSuite(t *testing.T) {
	suite.Run(t, new(RequestServiceSuite))
}

func (s *RequestServiceSuite) SetupTest() {
	s.runner = storage.NewMemoryRunner()
	s.now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := party.NewResolver(nil, party.WithClock(clock))
	grants := grantservice.NewService(s.runner, party.NewID(), log, grantservice.WithClock(clock))
	s.audit = &recordingPublisher{}
	s.svc = NewService(s.runner, request.NewOrchestrator(), resolver, grants, log,
		WithClock(clock), WithAuditor(s.audit))
}

// Party identifiers that resolve without the person directory.
func (s *RequestServiceSuite) payload() request.Payload {
	return request.Payload{
		Type:          request.TypeChangeOfSupplierConfirmation,
		RequestedBy:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "987654321"},
		RequestedFrom: party.ExternalIdentifier{Kind: party.KindGlobalLocationNumber, Value: "7080000000001"},
		RequestedTo:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
		Fields: map[string]string{
			request.PropMeteringPointID:     "707057500000000001",
			request.PropBalanceSupplierName: "Kraft AS",
		},
	}
}

func (s *RequestServiceSuite) TestCreate() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	s.Equal(request.StatusPending, req.Status)
	s.Equal(s.now.Add(30*24*time.Hour), req.ValidTo)
	s.NotEmpty(req.RequestedBy)
	s.NotEmpty(req.RequestedFrom)
	s.NotEmpty(req.RequestedTo)
	s.Nil(req.ApprovedBy)

	stored, err := s.runner.Stores().Requests().FindByID(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(req.Properties, stored.Properties)
}

func (s *RequestServiceSuite) TestCreateReusesPartyRows() {
	first, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)
	second, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.Equal(first.RequestedBy, second.RequestedBy)
	s.Equal(first.RequestedFrom, second.RequestedFrom)
}

func (s *RequestServiceSuite) TestCreateRejectsInvalidPayload() {
	p := s.payload()
	p.Fields[request.PropMeteringPointID] = "123"

	_, err := s.svc.Create(context.Background(), p)
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	s.Contains(err.Error(), "meteringPointId")
}

func (s *RequestServiceSuite) TestCreateRejectsUnknownType() {
	p := s.payload()
	p.Type = request.Type("SupplierTakeover")

	_, err := s.svc.Create(context.Background(), p)
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
}

func (s *RequestServiceSuite) TestAccept() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	view, err := s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
	s.Require().NoError(err)

	s.Equal(request.StatusAccepted, view.Request.Status)
	s.Require().NotNil(view.Request.ApprovedBy)
	s.Equal(req.RequestedTo, *view.Request.ApprovedBy)
	s.Require().NotNil(view.GrantID)

	g, err := s.runner.Stores().Grants().FindByID(context.Background(), *view.GrantID)
	s.Require().NoError(err)
	s.Equal(grant.StatusActive, g.Status)
	s.Equal(req.RequestedFrom, g.GrantedFor)
	s.Equal(req.RequestedTo, g.GrantedBy)
	s.Equal(req.RequestedBy, g.GrantedTo)
	s.Equal(s.now, g.ValidFrom)
	s.Equal(s.now.Add(365*24*time.Hour), g.ValidTo)
	s.Require().Len(g.Scopes, 1)
	s.Equal(scope.Key{
		ResourceType:   scope.ResourceMeteringPoint,
		ResourceID:     "707057500000000001",
		PermissionType: scope.PermissionChangeOfSupplier,
	}, g.Scopes[0].Key())
}

func (s *RequestServiceSuite) TestAcceptByWrongParty() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	_, err = s.svc.Accept(context.Background(), req.ID, req.RequestedBy)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotAuthorized))

	stored, err := s.runner.Stores().Requests().FindByID(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusPending, stored.Status)
}

func (s *RequestServiceSuite) TestAcceptExpiredRequest() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	s.now = s.now.Add(31 * 24 * time.Hour)
	_, err = s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
	s.True(domainerrors.HasCode(err, domainerrors.CodeExpired))

	_, err = s.runner.Stores().Grants().FindBySource(context.Background(), grant.SourceRequest, req.ID.String())
	s.True(errors.Is(err, sentinel.ErrNotFound), "no grant may exist for an expired request")
}

func (s *RequestServiceSuite) TestSecondDecisionIsAlreadyProcessed() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	_, err = s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
	s.Require().NoError(err)

	s.Run("accept twice", func() {
		_, err := s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
		s.True(domainerrors.HasCode(err, domainerrors.CodeAlreadyProcessed))
	})
	s.Run("reject after accept", func() {
		_, err := s.svc.Reject(context.Background(), req.ID, req.RequestedTo)
		s.True(domainerrors.HasCode(err, domainerrors.CodeAlreadyProcessed))
	})

	stored, err := s.runner.Stores().Requests().FindByID(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusAccepted, stored.Status, "terminal state matches the first decision only")
}

func (s *RequestServiceSuite) TestReject() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	out, err := s.svc.Reject(context.Background(), req.ID, req.RequestedTo)
	s.Require().NoError(err)
	s.Equal(request.StatusRejected, out.Status)
	s.Nil(out.ApprovedBy)

	_, err = s.runner.Stores().Grants().FindBySource(context.Background(), grant.SourceRequest, req.ID.String())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *RequestServiceSuite) TestGetAttachesGrantID() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	view, err := s.svc.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Nil(view.GrantID, "no grant before acceptance")

	accepted, err := s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
	s.Require().NoError(err)

	view, err = s.svc.Get(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Require().NotNil(view.GrantID)
	s.Equal(*accepted.GrantID, *view.GrantID)
}

func (s *RequestServiceSuite) TestGetUnknownRequest() {
	_, err := s.svc.Get(context.Background(), request.NewID())
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *RequestServiceSuite) TestExpireOverdue() {
	req, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	n, err := s.svc.ExpireOverdue(context.Background())
	s.Require().NoError(err)
	s.Zero(n)

	s.now = s.now.Add(31 * 24 * time.Hour)
	n, err = s.svc.ExpireOverdue(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	stored, err := s.runner.Stores().Requests().FindByID(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusExpired, stored.Status)

	_, err = s.svc.Accept(context.Background(), req.ID, req.RequestedTo)
	s.True(domainerrors.HasCode(err, domainerrors.CodeAlreadyProcessed))
}

func (s *RequestServiceSuite) TestExpireOverdueEmitsAuditEvents() {
	first, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)
	second, err := s.svc.Create(context.Background(), s.payload())
	s.Require().NoError(err)

	s.now = s.now.Add(31 * 24 * time.Hour)
	n, err := s.svc.ExpireOverdue(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	subjects := make(map[string]bool)
	for _, e := range s.audit.events {
		if e.Action == audit.ActionRequestExpired {
			subjects[e.Subject] = true
		}
	}
	s.True(subjects[first.ID.String()])
	s.True(subjects[second.ID.String()])
	s.Len(subjects, 2)

	n, err = s.svc.ExpireOverdue(context.Background())
	s.Require().NoError(err)
	s.Zero(n, "a second sweep finds nothing and emits nothing")
}
