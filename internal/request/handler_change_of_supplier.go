package request

import (
	"github.com/go-playground/validator/v10"

	"gridconsent/internal/scope"
	domainerrors "gridconsent/pkg/domain-errors"
)

// Property keys shared by the change-of-supplier processes.
const (
	PropMeteringPointID     = "meteringPointId"
	PropBalanceSupplierName = "balanceSupplierName"
	PropSupplierOrgNumber   = "balanceSupplierOrgNumber"
	PropConsumerName        = "consumerName"
	PropContractTitle       = "contractTitle"
)

// changeOfSupplierConfirmationHandler validates the consumer-consent variant
// of a supplier change: the consumer confirms the switch directly.
type changeOfSupplierConfirmationHandler struct {
	validate *validator.Validate
}

type changeOfSupplierConfirmationFields struct {
	MeteringPointID     string `field:"meteringPointId" validate:"required,len=18,numeric"`
	BalanceSupplierName string `field:"balanceSupplierName" validate:"notblank"`
}

func (h *changeOfSupplierConfirmationHandler) ValidateAndBuild(p Payload) (Command, error) {
	if err := validatePartyRefs(p); err != nil {
		return Command{}, err
	}
	fields := changeOfSupplierConfirmationFields{
		MeteringPointID:     p.Fields[PropMeteringPointID],
		BalanceSupplierName: p.Fields[PropBalanceSupplierName],
	}
	if err := h.validate.Struct(fields); err != nil {
		return Command{}, fieldError(err)
	}
	return Command{
		Type:          TypeChangeOfSupplierConfirmation,
		RequestedBy:   p.RequestedBy,
		RequestedFrom: p.RequestedFrom,
		RequestedTo:   p.RequestedTo,
		Properties: []Property{
			{Key: PropMeteringPointID, Value: fields.MeteringPointID},
			{Key: PropBalanceSupplierName, Value: fields.BalanceSupplierName},
		},
	}, nil
}

func (h *changeOfSupplierConfirmationHandler) GrantTerms(r *AuthorizationRequest) (GrantTerms, error) {
	return changeOfSupplierGrantTerms(r)
}

// changeOfSupplierContractHandler validates the signed-contract variant: the
// switch is evidenced by a PDF contract signed through the document pipeline.
type changeOfSupplierContractHandler struct {
	validate *validator.Validate
}

type changeOfSupplierContractFields struct {
	MeteringPointID   string `field:"meteringPointId" validate:"required,len=18,numeric"`
	SupplierOrgNumber string `field:"balanceSupplierOrgNumber" validate:"required,len=9,numeric"`
	ConsumerName      string `field:"consumerName" validate:"notblank"`
	ContractTitle     string `field:"contractTitle" validate:"notblank"`
}

func (h *changeOfSupplierContractHandler) ValidateAndBuild(p Payload) (Command, error) {
	if err := validatePartyRefs(p); err != nil {
		return Command{}, err
	}
	fields := changeOfSupplierContractFields{
		MeteringPointID:   p.Fields[PropMeteringPointID],
		SupplierOrgNumber: p.Fields[PropSupplierOrgNumber],
		ConsumerName:      p.Fields[PropConsumerName],
		ContractTitle:     p.Fields[PropContractTitle],
	}
	if err := h.validate.Struct(fields); err != nil {
		return Command{}, fieldError(err)
	}
	return Command{
		Type:          TypeChangeOfSupplierContract,
		RequestedBy:   p.RequestedBy,
		RequestedFrom: p.RequestedFrom,
		RequestedTo:   p.RequestedTo,
		Properties: []Property{
			{Key: PropMeteringPointID, Value: fields.MeteringPointID},
			{Key: PropSupplierOrgNumber, Value: fields.SupplierOrgNumber},
			{Key: PropConsumerName, Value: fields.ConsumerName},
			{Key: PropContractTitle, Value: fields.ContractTitle},
		},
	}, nil
}

func (h *changeOfSupplierContractHandler) GrantTerms(r *AuthorizationRequest) (GrantTerms, error) {
	return changeOfSupplierGrantTerms(r)
}

// changeOfSupplierGrantTerms derives the single metering-point scope both
// supplier-change variants authorize. Default validity applies.
func changeOfSupplierGrantTerms(r *AuthorizationRequest) (GrantTerms, error) {
	mpid, ok := r.Property(PropMeteringPointID)
	if !ok || mpid == "" {
		return GrantTerms{}, domainerrors.Newf(domainerrors.CodeInternal,
			"request %s is missing the %s property", r.ID, PropMeteringPointID)
	}
	return GrantTerms{
		Scopes: []scope.Key{{
			ResourceType:   scope.ResourceMeteringPoint,
			ResourceID:     mpid,
			PermissionType: scope.PermissionChangeOfSupplier,
		}},
	}, nil
}
