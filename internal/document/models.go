// Package document holds the signable document model: the PDF contract
// evidence a grant can be derived from once it carries a valid signature.
package document

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"gridconsent/internal/request"
)

// ID identifies a signable document.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// SignableDocument is created on generation and mutated in place by the
/// signing step: the content bytes are replaced with the signed byte stream.
// Documents are never deleted.
type SignableDocument struct {
	ID        ID
	RequestID request.ID
	Title     string
	Content   []byte
	Signed    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches reports content identity with another document. Identity is the
// (id, title, bytes) triple, not the id alone: a caller echoing back a
// tampered body must not pass.
func (d *SignableDocument) Matches(id ID, title string, content []byte) bool {
	return d.ID == id && d.Title == title && bytes.Equal(d.Content, content)
}
