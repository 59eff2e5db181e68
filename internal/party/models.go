// Package party holds the internal party model and the resolution rules that
// map external identifiers onto stable internal party records.
package party

import (
	"time"

	"github.com/google/uuid"
)

// ID is the internal, immutable party identifier.
type ID string

// NewID produces a fresh party ID.
func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Type enumerates the kinds of actors a party record can represent.
type Type string

const (
	TypePerson             Type = "Person"
	TypeOrganization       Type = "Organization"
	TypeOrganizationEntity Type = "OrganizationEntity"
	TypeSystem             Type = "System"
)

// IdentifierKind labels the external identifier scheme a caller resolved from.
type IdentifierKind string

const (
	KindNationalIdentityNumber IdentifierKind = "NationalIdentityNumber"
	KindOrganizationNumber     IdentifierKind = "OrganizationNumber"
	KindGlobalLocationNumber   IdentifierKind = "GlobalLocationNumber"
	KindSystemName             IdentifierKind = "SystemName"
)

// ExternalIdentifier is a typed external identifier as submitted by callers.
type ExternalIdentifier struct {
	Kind  IdentifierKind
	Value string
}

// Party is shared, append-only reference data. Records are created lazily on
// first resolution and never deleted; the internal ID is immutable.
type Party struct {
	ID                 ID
	Type               Type
	ExternalResourceID string
	CreatedAt          time.Time
}
