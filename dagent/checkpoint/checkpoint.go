// Package checkpoint defines the durable per-step snapshot contract the
// step loop writes to at every iteration boundary (§4.C, §6.4), plus two
// drivers: an in-memory one for tests and short-lived runs, and a
// SQLite-backed one for local/dev persistence. A specific production
// persistence engine is out of scope (§1); these are reference drivers any
// caller wiring this harness can start from.
package checkpoint

import (
	"context"

	"github.com/package-register/deepagent-go/dagent/state"
)

// Checkpointer persists and retrieves Checkpoint snapshots, totally
// ordered per thread_id (§5 "Checkpoints are totally ordered per
// thread_id").
type Checkpointer interface {
	// Save persists cp. Implementations must make Save for step N visible
	// to Latest only after any earlier Save for the same thread_id has
	// completed, preserving total order.
	Save(ctx context.Context, cp state.Checkpoint) error
	// Latest returns the most recent checkpoint for threadID, or ok=false
	// if none exists.
	Latest(ctx context.Context, threadID string) (state.Checkpoint, bool, error)
	// At returns the checkpoint for threadID at the given step.
	At(ctx context.Context, threadID string, step int) (state.Checkpoint, bool, error)
	// History returns every checkpoint for threadID, oldest first.
	History(ctx context.Context, threadID string) ([]state.Checkpoint, error)
}
