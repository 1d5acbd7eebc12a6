// Package counter tracks which chunk indices have arrived for each upload
// session. Implementations must make AddChunk safe for concurrent callers
// and idempotent per index: a client retrying a chunk whose earlier write
// succeeded must not inflate the count.
package counter

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Count when no tracking state exists for the
// session, which distinguishes "never initialized or expired" from a valid
// count of zero.
var ErrNotFound = errors.New("chunk counter not found")

// Store is the atomic chunk-receipt tracker shared by all upload handlers
type Store interface {
	// Init creates (or resets) the session's tracking state with zero
	// received chunks
	Init(ctx context.Context, sessionID string) error

	// AddChunk records receipt of a chunk index and returns the number of
	// distinct indices received so far. Recording the same index twice
	// returns the unchanged count.
	AddChunk(ctx context.Context, sessionID string, index int) (int, error)

	// Count returns the number of distinct indices received, or ErrNotFound
	// when the session was never initialized or its state has expired
	Count(ctx context.Context, sessionID string) (int, error)

	// Delete removes all tracking state for the session
	Delete(ctx context.Context, sessionID string) error

	// Close releases the underlying store
	Close() error
}
