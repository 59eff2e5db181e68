package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridconsent/internal/request"
	"gridconsent/pkg/platform/sentinel"
)

// Update refuses to touch a signed document, so a slow signer cannot
// overwrite the artifact a faster one already persisted.
func TestMemoryStoreUpdateGuardsUnsigned(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	doc := &SignableDocument{
		ID:        NewID(),
		RequestID: request.NewID(),
		Title:     "Change of supplier contract",
		Content:   []byte("%PDF-1.7 unsigned"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Insert(ctx, doc))

	signed := *doc
	signed.Content = []byte("%PDF-1.7 signed")
	signed.Signed = true
	require.NoError(t, store.Update(ctx, &signed))

	late := *doc
	late.Content = []byte("%PDF-1.7 signed elsewhere")
	late.Signed = true
	assert.ErrorIs(t, store.Update(ctx, &late), sentinel.ErrInvalidState)

	stored, err := store.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Signed)
	assert.Equal(t, signed.Content, stored.Content)
}

func TestMemoryStoreInsertOneDocumentPerRequest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	doc := &SignableDocument{ID: NewID(), RequestID: request.NewID(), Content: []byte("a")}
	require.NoError(t, store.Insert(ctx, doc))

	dup := &SignableDocument{ID: NewID(), RequestID: doc.RequestID, Content: []byte("b")}
	assert.ErrorIs(t, store.Insert(ctx, dup), sentinel.ErrConflict)
}
