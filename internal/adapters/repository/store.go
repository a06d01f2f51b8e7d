// Package repository keeps the live quiz sessions.
package repository

import (
	"context"
	"time"

	"github.com/okian/breedquiz/internal/domain/round"
)

// Entry is one live session.
type Entry struct {
	ID         string
	Controller *round.Controller
	CreatedAt  time.Time
	LastSeen   time.Time
}

// Store provides read/write access to live sessions.
type Store interface {
	// Create registers ctrl under a fresh ID.
	// Returns ErrCapacity when the store is full.
	Create(ctx context.Context, ctrl *round.Controller) (Entry, error)

	// Get returns the session and marks it as seen.
	// Returns ErrNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (Entry, error)

	// Delete removes and returns the session. The caller owns closing it.
	Delete(ctx context.Context, id string) (Entry, error)

	// Sweep removes and returns every session not seen since cutoff.
	Sweep(ctx context.Context, cutoff time.Time) []Entry

	// List returns all sessions, oldest first.
	List(ctx context.Context) []Entry

	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
