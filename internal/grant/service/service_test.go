package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gridconsent/internal/grant"
	"gridconsent/internal/party"
	"gridconsent/internal/scope"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
)

type GrantServiceSuite struct {
	suite.Suite
	runner *storage.MemoryRunner
	svc    *Service
	now    time.Time

	system party.ID
	owner  party.ID
	holder party.ID
}

func TestGrantServiceSuite(t *testing.T) {
	suite.Run(t, new(GrantServiceSuite))
}

func (s *GrantServiceSuite) SetupTest() {
	s.runner = storage.NewMemoryRunner()
	s.now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s.system = party.NewID()
	s.owner = party.NewID()
	s.holder = party.NewID()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.runner, s.system, log, WithClock(func() time.Time { return s.now }))
}

func (s *GrantServiceSuite) terms() Terms {
	return Terms{Scopes: []scope.Key{{
		ResourceType:   scope.ResourceMeteringPoint,
		ResourceID:     "123456789012345678",
		PermissionType: scope.PermissionChangeOfSupplier,
	}}}
}

func (s *GrantServiceSuite) create(sourceID string) *grant.Grant {
	s.T().Helper()
	var g *grant.Grant
	err := s.runner.RunInTx(context.Background(), func(tx storage.Tx) error {
		var err error
		g, err = s.svc.CreateFromRequest(context.Background(), tx, sourceID, s.holder, s.owner, s.owner, s.terms())
		return err
	})
	s.Require().NoError(err)
	return g
}

func (s *GrantServiceSuite) TestCreateFromRequestDefaults() {
	g := s.create("req-1")

	s.Equal(grant.StatusActive, g.Status)
	s.Equal(s.owner, g.GrantedFor, "grantedFor is the party the authorization was requested from")
	s.Equal(s.owner, g.GrantedBy, "grantedBy is the approver")
	s.Equal(s.holder, g.GrantedTo, "grantedTo is the submitter")
	s.Equal(s.now, g.ValidFrom)
	s.Equal(s.now.Add(365*24*time.Hour), g.ValidTo)
	s.Require().Len(g.Scopes, 1)
	s.Equal(scope.ResourceMeteringPoint, g.Scopes[0].ResourceType)
}

func (s *GrantServiceSuite) TestCreateIsIdempotentPerSource() {
	first := s.create("req-1")
	second := s.create("req-1")

	s.Equal(first.ID, second.ID, "the same source must always map to the same grant")
}

func (s *GrantServiceSuite) TestCreateSharesScopeRows() {
	first := s.create("req-1")
	second := s.create("req-2")

	s.Require().Len(first.Scopes, 1)
	s.Require().Len(second.Scopes, 1)
	s.Equal(first.Scopes[0].ID, second.Scopes[0].ID, "identical triples resolve to one scope row")
}

func (s *GrantServiceSuite) TestCreateRejectsInvertedWindow() {
	from := s.now.Add(time.Hour)
	to := s.now
	terms := s.terms()
	terms.ValidFrom = &from
	terms.ValidTo = &to

	err := s.runner.RunInTx(context.Background(), func(tx storage.Tx) error {
		_, err := s.svc.CreateFromRequest(context.Background(), tx, "req-1", s.holder, s.owner, s.owner, terms)
		return err
	})
	s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
}

func (s *GrantServiceSuite) TestCreateRequiresScopes() {
	err := s.runner.RunInTx(context.Background(), func(tx storage.Tx) error {
		_, err := s.svc.CreateFromRequest(context.Background(), tx, "req-1", s.holder, s.owner, s.owner, Terms{})
		return err
	})
	s.True(domainerrors.HasCode(err, domainerrors.CodeInternal))
}

func (s *GrantServiceSuite) TestConsume() {
	g := s.create("req-1")

	s.Run("only the system actor may consume", func() {
		_, err := s.svc.Consume(context.Background(), g.ID, s.holder, grant.StatusExhausted)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotAuthorized))
	})

	s.Run("only Exhausted is a legal target", func() {
		_, err := s.svc.Consume(context.Background(), g.ID, s.system, grant.StatusActive)
		s.True(domainerrors.HasCode(err, domainerrors.CodeIllegalTransition))
	})

	s.Run("system actor exhausts an active grant", func() {
		out, err := s.svc.Consume(context.Background(), g.ID, s.system, grant.StatusExhausted)
		s.Require().NoError(err)
		s.Equal(grant.StatusExhausted, out.Status)
	})

	s.Run("second consume is an illegal state", func() {
		_, err := s.svc.Consume(context.Background(), g.ID, s.system, grant.StatusExhausted)
		s.True(domainerrors.HasCode(err, domainerrors.CodeIllegalState))
	})
}

func (s *GrantServiceSuite) TestConsumeExpiredGrant() {
	g := s.create("req-1")
	s.now = s.now.Add(366 * 24 * time.Hour)

	_, err := s.svc.Consume(context.Background(), g.ID, s.system, grant.StatusExhausted)
	s.True(domainerrors.HasCode(err, domainerrors.CodeExpired))
}

func (s *GrantServiceSuite) TestConsumeUnknownGrant() {
	_, err := s.svc.Consume(context.Background(), grant.NewID(), s.system, grant.StatusExhausted)
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
}

func (s *GrantServiceSuite) TestGetScopesAuthorization() {
	g := s.create("req-1")

	for _, allowed := range []party.ID{s.owner, s.holder, s.system} {
		scopes, err := s.svc.GetScopes(context.Background(), g.ID, allowed)
		s.Require().NoError(err)
		s.Len(scopes, 1)
	}

	_, err := s.svc.GetScopes(context.Background(), g.ID, party.NewID())
	s.True(domainerrors.HasCode(err, domainerrors.CodeNotAuthorized))
}
