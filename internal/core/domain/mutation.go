package domain

import (
	"encoding/json"
	"time"
)

// MutationKind identifies the backend write a PendingMutation replays.
type MutationKind string

// Known mutation kinds.
const (
	MutationProgressUpdate  MutationKind = "progress-update"
	MutationLearningTime    MutationKind = "learning-time"
	MutationChapterComplete MutationKind = "chapter-complete"
)

// IsValid returns true if the kind is recognised.
func (k MutationKind) IsValid() bool {
	switch k {
	case MutationProgressUpdate, MutationLearningTime, MutationChapterComplete:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k MutationKind) String() string {
	return string(k)
}

// PendingMutation is a write that could not reach the backend.
// Mutations are replayed oldest first and removed only on success.
type PendingMutation struct {
	// ID is a UUID, also sent as the idempotency key on replay.
	ID string

	// Kind selects the backend endpoint.
	Kind MutationKind

	// Payload is the JSON request body.
	Payload json.RawMessage

	// CreatedAt is when the write was made. Queue order is insertion
	// order, not CreatedAt.
	CreatedAt time.Time

	// Attempts counts failed replays.
	Attempts int

	// LastError is the message of the most recent failed replay.
	LastError string
}

// ProgressUpdate is the payload of a progress-update mutation.
type ProgressUpdate struct {
	PathID    string    `json:"path_id"`
	ChapterID string    `json:"chapter_id,omitempty"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LearningTime is the payload of a learning-time mutation.
type LearningTime struct {
	PathID    string    `json:"path_id,omitempty"`
	ChapterID string    `json:"chapter_id"`
	Seconds   int64     `json:"seconds"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// ReplayResult summarises one flush of the mutation queue.
type ReplayResult struct {
	// Replayed is the number of mutations delivered and removed.
	Replayed int

	// Remaining is the queue length after the flush.
	Remaining int

	// FailedID is the mutation that stopped the flush, if any.
	FailedID string
}
