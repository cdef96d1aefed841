// Package checkpoint persists runs that are waiting at the approval gate,
// so a decision can resume them later, possibly from another process.
package checkpoint

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrNotFound is returned for unknown or expired runs.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrClaimed is returned once another caller has claimed the run.
	ErrClaimed = errors.New("checkpoint already claimed")
)

// Store persists serialized run state keyed by run ID.
type Store interface {
	// Save writes data for runID, replacing any previous checkpoint.
	Save(ctx context.Context, runID string, data []byte) error

	// Load returns the checkpoint for runID, ErrNotFound, or ErrClaimed.
	Load(ctx context.Context, runID string) ([]byte, error)

	// Claim hands the checkpoint to exactly one caller. Later callers get
	// ErrClaimed until the checkpoint is saved again or deleted. A claimed
	// run is no longer listed.
	Claim(ctx context.Context, runID string) ([]byte, error)

	// Delete removes the checkpoint. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of live checkpoints.
	List(ctx context.Context) ([]string, error)
}
