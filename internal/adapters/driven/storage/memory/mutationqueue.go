package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// Ensure MutationQueue implements the interface.
var _ driven.MutationQueue = (*MutationQueue)(nil)

// MutationQueue is an in-memory implementation of driven.MutationQueue.
// Its contents do not survive a restart.
type MutationQueue struct {
	mu    sync.RWMutex
	items []domain.PendingMutation
}

// NewMutationQueue creates a new in-memory mutation queue.
func NewMutationQueue() *MutationQueue {
	return &MutationQueue{}
}

// Enqueue appends a mutation.
func (q *MutationQueue) Enqueue(_ context.Context, m domain.PendingMutation) error {
	if m.ID == "" {
		return fmt.Errorf("%w: mutation id is required", domain.ErrInvalidInput)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.items {
		if existing.ID == m.ID {
			return fmt.Errorf("%w: duplicate mutation %s", domain.ErrInvalidInput, m.ID)
		}
	}
	q.items = append(q.items, copyMutation(m))
	return nil
}

// Peek returns the oldest mutation, or nil when empty.
func (q *MutationQueue) Peek(_ context.Context) (*domain.PendingMutation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	m := copyMutation(q.items[0])
	return &m, nil
}

// List returns every queued mutation, oldest first.
func (q *MutationQueue) List(_ context.Context) ([]domain.PendingMutation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]domain.PendingMutation, len(q.items))
	for i, m := range q.items {
		out[i] = copyMutation(m)
	}
	return out, nil
}

// Remove deletes a mutation by ID.
func (q *MutationQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.items {
		if m.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// MarkFailed records a failed replay attempt.
func (q *MutationQueue) MarkFailed(_ context.Context, id string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].Attempts++
			q.items[i].LastError = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

// Len returns the number of queued mutations.
func (q *MutationQueue) Len(_ context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items), nil
}

func copyMutation(m domain.PendingMutation) domain.PendingMutation {
	m.Payload = append([]byte(nil), m.Payload...)
	return m
}
