package request

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "gridconsent/pkg/domain-errors"
)

// TypeHandler validates the raw payload of one business process and builds
// the typed command to persist, and later derives the grant terms the
// accepted/signed source implies.
type TypeHandler interface {
	ValidateAndBuild(p Payload) (Command, error)
	GrantTerms(r *AuthorizationRequest) (GrantTerms, error)
}

// Orchestrator is the closed mapping from request type to handler. Adding a
// type means adding a constant, extending HandlerFor's switch, and listing it
// in Types(); the exhaustiveness test fails on any omission before deploy.
type Orchestrator struct {
	confirmation *changeOfSupplierConfirmationHandler
	contract     *changeOfSupplierContractHandler
}

// NewOrchestrator wires the per-type handlers around a shared validator.
func NewOrchestrator() *Orchestrator {
	v := validator.New()
	// Field names in error messages come from the `field` tag, matching the
	// names callers submitted.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("field")
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Orchestrator{
		confirmation: &changeOfSupplierConfirmationHandler{validate: v},
		contract:     &changeOfSupplierContractHandler{validate: v},
	}
}

// HandlerFor selects the handler for t. Unknown values are a caller error:
// the set of types is closed.
func (o *Orchestrator) HandlerFor(t Type) (TypeHandler, error) {
	switch t {
	case TypeChangeOfSupplierConfirmation:
		return o.confirmation, nil
	case TypeChangeOfSupplierContract:
		return o.contract, nil
	default:
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "unsupported request type %q", t)
	}
}

// validatePartyRefs rejects payloads whose party identifiers are missing
// before any per-type field rules run.
func validatePartyRefs(p Payload) error {
	refs := []struct {
		name  string
		kind  string
		value string
	}{
		{"requestedBy", string(p.RequestedBy.Kind), p.RequestedBy.Value},
		{"requestedFrom", string(p.RequestedFrom.Kind), p.RequestedFrom.Value},
		{"requestedTo", string(p.RequestedTo.Kind), p.RequestedTo.Value},
	}
	for _, ref := range refs {
		if ref.kind == "" || ref.value == "" {
			return domainerrors.Newf(domainerrors.CodeValidation, "%s identifier must carry kind and value", ref.name)
		}
	}
	return nil
}

// fieldError converts validator output into one coded error naming exactly
// the field that failed.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required", "notblank":
			return domainerrors.Newf(domainerrors.CodeValidation, "field %q must not be blank", fe.Field())
		case "len":
			return domainerrors.Newf(domainerrors.CodeValidation, "field %q must be exactly %s characters", fe.Field(), fe.Param())
		case "numeric":
			return domainerrors.Newf(domainerrors.CodeValidation, "field %q must contain digits only", fe.Field())
		default:
			return domainerrors.Newf(domainerrors.CodeValidation, "field %q failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return domainerrors.Wrap(err, domainerrors.CodeValidation, "payload validation failed")
}
