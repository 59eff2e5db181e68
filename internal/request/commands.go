package request

import (
	"time"

	"gridconsent/internal/party"
	"gridconsent/internal/scope"
)

// Payload is the raw creation submission as the transport hands it over. The
// wire format around it is not fixed here; per-type business fields arrive in
// Fields and are validated by the type's handler.
type Payload struct {
	Type          Type
	RequestedBy   party.ExternalIdentifier
	RequestedFrom party.ExternalIdentifier
	RequestedTo   party.ExternalIdentifier
	Fields        map[string]string
}

// Command is the validated, typed product of a handler. It is the only thing
// the lifecycle persists from a submission.
type Command struct {
	Type          Type
	RequestedBy   party.ExternalIdentifier
	RequestedFrom party.ExternalIdentifier
	RequestedTo   party.ExternalIdentifier
	// ValidTo overrides the 30-day default when the business process
	// prescribes its own window.
	ValidTo    *time.Time
	Properties []Property
}

// GrantTerms describes the grant a source gives rise to: the scopes it covers
// and an optional validity override (default is one year from grant time).
type GrantTerms struct {
	Scopes    []scope.Key
	ValidFrom *time.Time
	ValidTo   *time.Time
}
