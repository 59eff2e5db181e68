// Package signer abstracts signature production. Implementations hold or
// proxy the key material; the signing pipeline only ever sees digests and
// signature bytes.
package signer

import "context"

// Signer produces a signature over a precomputed digest.
type Signer interface {
	Sign(ctx context.Context, digest []byte) ([]byte, error)
}

// Dummy returns the digest itself as the signature. For tests and local
// development only; the output carries no cryptographic value.
type Dummy struct{}

func (Dummy) Sign(_ context.Context, digest []byte) ([]byte, error) {
	out := make([]byte, len(digest))
	copy(out, digest)
	return out, nil
}
