package driving

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// SyncAgent replays writes queued while offline.
type SyncAgent interface {
	// Enqueue appends a mutation to the pending queue.
	Enqueue(ctx context.Context, kind domain.MutationKind, payload json.RawMessage) (*domain.PendingMutation, error)

	// Flush replays the queue oldest first and stops at the first failure.
	Flush(ctx context.Context) (domain.ReplayResult, error)

	// Drop removes a queued mutation without replaying it.
	Drop(ctx context.Context, id string) error

	// Pending lists the queued mutations, oldest first.
	Pending(ctx context.Context) ([]domain.PendingMutation, error)

	// Status returns the replay status.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus represents the state of the mutation queue.
type SyncStatus struct {
	// Running indicates if a flush is in progress.
	Running bool

	// Pending is the number of queued mutations.
	Pending int

	// LastFlush is when the last flush finished.
	LastFlush time.Time

	// LastError is the error that stopped the last flush, if any.
	LastError string
}

// ProgressRecorder is the mutating API used for learner progress.
type ProgressRecorder interface {
	// Record sends the write now, or queues it when it cannot reach the backend.
	Record(ctx context.Context, kind domain.MutationKind, payload any) (queued bool, err error)
}
