package party

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	domainerrors "gridconsent/pkg/domain-errors"
)

const validNIN = "01019012480"

type ResolverSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	directory *MockDirectory
	store     *MemoryStore
	resolver  *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = NewMockDirectory(s.ctrl)
	s.store = NewMemoryStore()
	s.resolver = NewResolver(s.directory, WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
}

func (s *ResolverSuite) TestNationalIdentityNumber() {
	ctx := context.Background()

	s.Run("invalid number fails locally without a directory call", func() {
		_, err := s.resolver.Resolve(ctx, s.store, ExternalIdentifier{
			Kind:  KindNationalIdentityNumber,
			Value: "01019012481",
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	})

	s.Run("valid number resolves through the directory", func() {
		s.directory.EXPECT().FindOrCreateByNIN(gomock.Any(), validNIN).Return("person-42", nil)

		p, err := s.resolver.Resolve(ctx, s.store, ExternalIdentifier{
			Kind:  KindNationalIdentityNumber,
			Value: validNIN,
		})
		s.Require().NoError(err)
		s.Equal(TypePerson, p.Type)
		s.Equal("person-42", p.ExternalResourceID)
		s.NotEmpty(p.ID)
	})

	s.Run("directory failure surfaces as a dependency error", func() {
		s.directory.EXPECT().FindOrCreateByNIN(gomock.Any(), validNIN).Return("", errors.New("503"))

		_, err := s.resolver.Resolve(ctx, s.store, ExternalIdentifier{
			Kind:  KindNationalIdentityNumber,
			Value: validNIN,
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeDependency))
	})
}

func (s *ResolverSuite) TestLocalKindsAreIdempotent() {
	ctx := context.Background()
	ident := ExternalIdentifier{Kind: KindOrganizationNumber, Value: "987654321"}

	first, err := s.resolver.Resolve(ctx, s.store, ident)
	s.Require().NoError(err)
	second, err := s.resolver.Resolve(ctx, s.store, ident)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(TypeOrganization, first.Type)
}

func (s *ResolverSuite) TestIdentifierSyntax() {
	ctx := context.Background()

	cases := []ExternalIdentifier{
		{Kind: KindOrganizationNumber, Value: "12345678"},
		{Kind: KindOrganizationNumber, Value: "12345678a"},
		{Kind: KindGlobalLocationNumber, Value: "123"},
		{Kind: KindSystemName, Value: ""},
		{Kind: "Passport", Value: "X123"},
	}
	for _, ident := range cases {
		_, err := s.resolver.Resolve(ctx, s.store, ident)
		s.Require().Error(err, "kind=%s value=%q", ident.Kind, ident.Value)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	}
}

func (s *ResolverSuite) TestGlobalLocationNumber() {
	ctx := context.Background()
	p, err := s.resolver.Resolve(ctx, s.store, ExternalIdentifier{
		Kind:  KindGlobalLocationNumber,
		Value: "7080000000001",
	})
	s.Require().NoError(err)
	s.Equal(TypeOrganizationEntity, p.Type)
}

// N concurrent resolutions of the same identifier must end with exactly one
// row and every caller holding the same internal ID.
func (s *ResolverSuite) TestConcurrentResolutionConverges() {
	ctx := context.Background()
	ident := ExternalIdentifier{Kind: KindOrganizationNumber, Value: "111222333"}

	const callers = 32
	ids := make([]ID, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			p, err := s.resolver.Resolve(ctx, s.store, ident)
			s.NoError(err)
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		s.Equal(ids[0], ids[i])
	}
}
