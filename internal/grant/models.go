// Package grant holds the authorization grant model: a time-bounded record
// permitting one party to exercise specific permissions over a resource on
// behalf of another.
package grant

import (
	"time"

	"github.com/google/uuid"

	"gridconsent/internal/party"
	"gridconsent/internal/scope"
)

// ID identifies a grant.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Status is the grant lifecycle state. Active -> Exhausted, one way.
type Status string

const (
	StatusActive    Status = "Active"
	StatusExhausted Status = "Exhausted"
)

// SourceType names the kind of evidence a grant was derived from. Exactly one
// grant exists per (sourceType, sourceID).
type SourceType string

const (
	SourceRequest  SourceType = "Request"
	SourceDocument SourceType = "Document"
)

// DefaultValidity applies when the business process does not override the
// grant window.
const DefaultValidity = 365 * 24 * time.Hour

// Grant is created atomically with its scope associations when a request is
// accepted or a document is signed. Its source is a back-reference, never an
// ownership edge: deleting a grant must not cascade into its source, and a
// source cannot be deleted while an Active grant references it.
type Grant struct {
	ID         ID
	Status     Status
	GrantedFor party.ID
	GrantedBy  party.ID
	GrantedTo  party.ID
	GrantedAt  time.Time
	ValidFrom  time.Time
	ValidTo    time.Time
	SourceType SourceType
	SourceID   string
	Scopes     []scope.Scope
}
