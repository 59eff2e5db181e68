// Package request holds the authorization request model, its state machine
// vocabulary, and the per-business-process orchestration that validates raw
// submission payloads into typed commands.
package request

import (
	"time"

	"github.com/google/uuid"

	"gridconsent/internal/party"
)

// ID identifies an authorization request.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Type enumerates the supported business processes. The orchestrator dispatch
// over this enum is closed; see Orchestrator.
type Type string

const (
	TypeChangeOfSupplierConfirmation Type = "ChangeOfSupplierConfirmation"
	TypeChangeOfSupplierContract     Type = "ChangeOfSupplierContract"
)

// Types lists every supported request type. Kept next to the constants so the
// exhaustiveness test and the orchestrator cover the same set.
func Types() []Type {
	return []Type{
		TypeChangeOfSupplierConfirmation,
		TypeChangeOfSupplierContract,
	}
}

// Status is the request lifecycle state. A request leaves Pending exactly
// once; the terminal states are never revisited.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusAccepted Status = "Accepted"
	StatusRejected Status = "Rejected"
	StatusExpired  Status = "Expired"
)

// DefaultValidity is applied when the business command does not override the
// validity window.
const DefaultValidity = 30 * 24 * time.Hour

// Property is one entry of the ordered key/value list submitted with a
// request. Order is preserved on reads, which is why this is a slice element
// and not a map entry.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AuthorizationRequest is a pending ask for a grant, awaiting a decision by
// the requestedTo party.
type AuthorizationRequest struct {
	ID            ID
	Type          Type
	Status        Status
	RequestedBy   party.ID
	RequestedFrom party.ID
	RequestedTo   party.ID
	ApprovedBy    *party.ID
	ValidTo       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Properties    []Property
}

// Property returns the value for key and whether it was present.
func (r *AuthorizationRequest) Property(key string) (string, bool) {
	for _, p := range r.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Terminal reports whether the request has left Pending.
func (r *AuthorizationRequest) Terminal() bool {
	return r.Status != StatusPending
}
