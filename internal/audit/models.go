// Package audit emits append-only records of every consent decision. Events
// are fire-and-forget: a broker outage must never fail the business
// transaction that produced the event.
package audit

import "time"

// Action names what happened.
type Action string

const (
	ActionRequestCreated  Action = "request.created"
	ActionRequestAccepted Action = "request.accepted"
	ActionRequestRejected Action = "request.rejected"
	ActionRequestExpired  Action = "request.expired"
	ActionGrantCreated    Action = "grant.created"
	ActionGrantConsumed   Action = "grant.consumed"
	ActionDocumentCreated Action = "document.created"
	ActionDocumentSigned  Action = "document.signed"
)

// Event is one audit record. Subject is the id of the affected entity; Actor
// the internal party id that caused the change, when one exists.
type Event struct {
	Action    Action            `json:"action"`
	Subject   string            `json:"subject"`
	Actor     string            `json:"actor,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
