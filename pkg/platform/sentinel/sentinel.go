package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors.
//
// These represent factual states about rows, not validation failures:
// - ErrNotFound: row does not exist
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrReferenced: a restrict-on-delete reference blocked the write
// - ErrInvalidState: a guarded update found the row in a different state
//   than the transition requires (a concurrent writer got there first)
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrReferenced   = errors.New("still referenced")
	ErrInvalidState = errors.New("invalid state")
)
