// internal/store/store.go
//
// Persistence interface for session snapshots.
// Snapshots are read and written whole, with optimistic-concurrency
// versions: every Put names the version it read, and loses if another
// writer got there first. Implementations may be backed by memory
// (this package), Redis, SQL, etc.

package store

import (
	"context"
	"errors"

	"github.com/wordclash/server/internal/game"
)

var (
	// ErrNotFound is returned by Get for unknown session codes.
	ErrNotFound = errors.New("store: session not found")

	// ErrVersionConflict is returned by Put when the stored version no
	// longer matches the expected one. Callers re-read and retry.
	ErrVersionConflict = errors.New("store: version conflict")
)

// Store persists session snapshots keyed by game code.
type Store interface {
	// Get returns a snapshot of the session and its current version.
	Get(ctx context.Context, code string) (*game.Session, uint64, error)

	// Put writes a snapshot conditionally. expected is the version the
	// caller read; pass 0 to create a session that must not already
	// exist. Returns the new version.
	Put(ctx context.Context, code string, s *game.Session, expected uint64) (uint64, error)

	// Delete removes a session. Deleting an unknown code is not an error.
	Delete(ctx context.Context, code string) error
}
