package driven

import (
	"context"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// MutationQueue persists writes made while offline, in FIFO order.
type MutationQueue interface {
	// Enqueue appends a mutation to the tail of the queue.
	Enqueue(ctx context.Context, m domain.PendingMutation) error

	// Peek returns the oldest mutation, or nil and no error when empty.
	Peek(ctx context.Context) (*domain.PendingMutation, error)

	// List returns every queued mutation, oldest first.
	List(ctx context.Context) ([]domain.PendingMutation, error)

	// Remove deletes a mutation after a successful replay.
	Remove(ctx context.Context, id string) error

	// MarkFailed records a failed replay attempt without reordering.
	MarkFailed(ctx context.Context, id string, reason string) error

	// Len returns the number of queued mutations.
	Len(ctx context.Context) (int, error)
}
