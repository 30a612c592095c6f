// Package store defines the contract shared by every paste backend.
//
// A backend persists pastes and resolves reads against the TTL and the
// view budget. Fetch must behave identically on every implementation:
//
//  1. unknown id -> domain.ErrNotFound
//  2. expires_at set and now > expires_at -> domain.ErrNotFound
//  3. unlimited budget -> the paste, unchanged
//  4. stored budget <= 0 -> domain.ErrNotFound, nothing written;
//     otherwise decrement by one and return the post-decrement snapshot
//
// Step 4 runs atomically per id: concurrent readers never spend more
// views than the paste was created with.
package store

import (
	"context"

	"github.com/MrSnakeDoc/blink/internal/domain"
)

// Backend is a storage substrate for pastes.
type Backend interface {
	// Create validates opts, persists a new paste and returns its id.
	Create(ctx context.Context, opts domain.CreateOptions) (string, error)

	// Fetch resolves a read at the caller-supplied time now (epoch ms).
	Fetch(ctx context.Context, id string, now int64) (*domain.Paste, error)

	// Health is a cheap liveness check. It never fails; it returns false.
	Health(ctx context.Context) bool

	// Name identifies the substrate ("memory", "redis", "sqlite").
	Name() string

	// Close releases the backend's resources.
	Close() error
}

// Sweeper is implemented by backends that can purge dead pastes in bulk.
// Sweeping never changes what Fetch returns; it only frees storage.
type Sweeper interface {
	Sweep(ctx context.Context, now int64) (Swept, error)
}

// Swept reports what one sweep removed.
type Swept struct {
	Count int
	// BlobRefs holds the BlobRef of every removed blob paste, so the
	// caller can delete the stored files too.
	BlobRefs []string
}

// Clock returns the current time in epoch milliseconds.
// Backends use it only to stamp created_at.
type Clock func() int64

// MaxIDAttempts bounds identifier regeneration on collision.
const MaxIDAttempts = 3
