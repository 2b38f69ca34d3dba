package driven

import (
	"context"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// ContentStore persists downloaded content keyed by scope.
// It is a single process-wide store; implementations must be safe for
// concurrent use across different scopes.
type ContentStore interface {
	// IsDownloaded reports whether a record exists for the scope.
	IsDownloaded(ctx context.Context, scope domain.Scope) (bool, error)

	// Save persists content for the scope, replacing any previous record.
	// Failures wrap domain.ErrStorage; a quota overrun additionally wraps
	// domain.ErrQuotaExceeded. A failed Save leaves no record behind.
	Save(ctx context.Context, scope domain.Scope, content domain.Content) (*domain.DownloadRecord, error)

	// Get returns the record including its content.
	// Returns domain.ErrNotFound if the scope is not downloaded.
	Get(ctx context.Context, scope domain.Scope) (*domain.DownloadRecord, error)

	// List returns records without content, newest first.
	// An empty scopeType lists every record.
	List(ctx context.Context, scopeType domain.ScopeType) ([]domain.DownloadRecord, error)

	// Delete removes the record. Deleting an absent scope is not an error.
	Delete(ctx context.Context, scope domain.Scope) error

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Usage returns the total stored content size in bytes.
	Usage(ctx context.Context) (int64, error)
}
