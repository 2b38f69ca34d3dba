package driving

import (
	"context"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// DownloadCoordinator orchestrates offline download and removal of content.
type DownloadCoordinator interface {
	// Download starts (or attaches to) the transfer for a scope.
	// Returns domain.ErrNetwork immediately when offline.
	Download(ctx context.Context, scope domain.Scope) (Download, error)

	// Delete removes downloaded content. Idempotent.
	Delete(ctx context.Context, scope domain.Scope) error

	// IsDownloaded reports whether the scope is available offline.
	IsDownloaded(ctx context.Context, scope domain.Scope) (bool, error)

	// PathStatus derives the offline status of a path from its chapters.
	PathStatus(ctx context.Context, pathID string) (*domain.PathStatus, error)

	// List returns downloaded records without content.
	List(ctx context.Context, scopeType domain.ScopeType) ([]domain.DownloadRecord, error)

	// Clear removes all downloaded content.
	Clear(ctx context.Context) error

	// Active returns the scopes with a transfer in flight.
	Active() []domain.Scope
}

// Download is one subscription to a transfer.
type Download interface {
	// Scope returns what is being downloaded.
	Scope() domain.Scope

	// Updates yields percentages 0-100, never decreasing.
	// The channel closes when the transfer ends; 100 is sent only on success.
	Updates() <-chan int

	// Wait blocks until the transfer ends and returns its outcome.
	Wait(ctx context.Context) (*domain.DownloadRecord, error)

	// Close discards this subscription. When the last subscriber leaves
	// before the content is saved the transfer is aborted.
	Close()
}
