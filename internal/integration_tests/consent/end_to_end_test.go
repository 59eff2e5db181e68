package consent

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridconsent/internal/document/render"
	"gridconsent/internal/document/signer"
	documentservice "gridconsent/internal/document/service"
	"gridconsent/internal/grant"
	grantservice "gridconsent/internal/grant/service"
	"gridconsent/internal/party"
	"gridconsent/internal/request"
	requestservice "gridconsent/internal/request/service"
	"gridconsent/internal/scope"
	"gridconsent/internal/storage"
	domainerrors "gridconsent/pkg/domain-errors"
	"gridconsent/pkg/testutil"
)

type world struct {
	runner    *storage.MemoryRunner
	requests  *requestservice.Service
	grants    *grantservice.Service
	documents *documentservice.Service
	system    party.ID
}

func newWorld(t *testing.T) *world {
	t.Helper()
	runner := storage.NewMemoryRunner()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := request.NewOrchestrator()
	system := party.NewID()

	grants := grantservice.NewService(runner, system, log)
	return &world{
		runner:   runner,
		requests: requestservice.NewService(runner, orch, party.NewResolver(nil), grants, log),
		grants:   grants,
		documents: documentservice.NewService(runner, orch, render.NewRenderer("gridconsent"),
			signer.Dummy{}, grants, log),
		system: system,
	}
}

func TestChangeOfSupplierConfirmationEndToEnd(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	var created *request.AuthorizationRequest
	testutil.Given(t, "a supplier submits a confirmation request for a metering point", func(t *testing.T) {
		var err error
		created, err = w.requests.Create(ctx, request.Payload{
			Type:          request.TypeChangeOfSupplierConfirmation,
			RequestedBy:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "987654321"},
			RequestedFrom: party.ExternalIdentifier{Kind: party.KindGlobalLocationNumber, Value: "7080000000001"},
			RequestedTo:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
			Fields: map[string]string{
				request.PropMeteringPointID:     "123456789012345678",
				request.PropBalanceSupplierName: "Kraft AS",
			},
		})
		require.NoError(t, err)
	})

	var view *requestservice.View
	testutil.When(t, "the requestedTo party accepts before the validity window closes", func(t *testing.T) {
		var err error
		view, err = w.requests.Accept(ctx, created.ID, created.RequestedTo)
		require.NoError(t, err)
	})

	testutil.Then(t, "the request is accepted and an active one-year grant covers the metering point", func(t *testing.T) {
		assert.Equal(t, request.StatusAccepted, view.Request.Status)
		require.NotNil(t, view.GrantID)

		g, err := w.grants.Get(ctx, *view.GrantID)
		require.NoError(t, err)
		assert.Equal(t, grant.StatusActive, g.Status)

		now := time.Now().UTC()
		assert.WithinDuration(t, now, g.ValidFrom, time.Minute)
		assert.WithinDuration(t, now.Add(365*24*time.Hour), g.ValidTo, time.Minute)

		require.Len(t, g.Scopes, 1)
		assert.Equal(t, scope.Key{
			ResourceType:   scope.ResourceMeteringPoint,
			ResourceID:     "123456789012345678",
			PermissionType: scope.PermissionChangeOfSupplier,
		}, g.Scopes[0].Key())
	})
}

func TestContractDoubleSigningIsRefused(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	created, err := w.requests.Create(ctx, request.Payload{
		Type:          request.TypeChangeOfSupplierContract,
		RequestedBy:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "987654321"},
		RequestedFrom: party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
		RequestedTo:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
		Fields: map[string]string{
			request.PropMeteringPointID:   "123456789012345678",
			request.PropSupplierOrgNumber: "987654321",
			request.PropConsumerName:      "Ola Nordmann",
			request.PropContractTitle:     "Change of supplier contract",
		},
	})
	require.NoError(t, err)

	doc, err := w.documents.Generate(ctx, created.ID)
	require.NoError(t, err)

	_, derived, err := w.documents.Sign(ctx, doc.ID, created.RequestedFrom, doc.Title, doc.Content)
	require.NoError(t, err)

	// A second signing round for the same underlying request must fail, and
	// exactly one signed document and one grant may exist.
	_, _, err = w.documents.Sign(ctx, doc.ID, created.RequestedFrom, doc.Title, doc.Content)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeAlreadyGranted))

	_, err = w.documents.Generate(ctx, created.ID)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeAlreadyGranted))

	stored, err := w.runner.Stores().Documents().FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Signed)

	again, err := w.runner.Stores().Grants().FindBySource(ctx, grant.SourceDocument, doc.ID.String())
	require.NoError(t, err)
	assert.Equal(t, derived.ID, again.ID, "only one grant exists for the signed contract")
}

func TestConsumeIsRestrictedToTheSystemActor(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	created, err := w.requests.Create(ctx, request.Payload{
		Type:          request.TypeChangeOfSupplierConfirmation,
		RequestedBy:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "987654321"},
		RequestedFrom: party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
		RequestedTo:   party.ExternalIdentifier{Kind: party.KindOrganizationNumber, Value: "123456785"},
		Fields: map[string]string{
			request.PropMeteringPointID:     "123456789012345678",
			request.PropBalanceSupplierName: "Kraft AS",
		},
	})
	require.NoError(t, err)

	view, err := w.requests.Accept(ctx, created.ID, created.RequestedTo)
	require.NoError(t, err)

	_, err = w.grants.Consume(ctx, *view.GrantID, created.RequestedBy, grant.StatusExhausted)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeNotAuthorized))

	g, err := w.grants.Consume(ctx, *view.GrantID, w.system, grant.StatusExhausted)
	require.NoError(t, err)
	assert.Equal(t, grant.StatusExhausted, g.Status)

	_, err = w.grants.Consume(ctx, *view.GrantID, w.system, grant.StatusExhausted)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeIllegalState))
}
