package driven

import (
	"context"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// ProgressFunc receives transfer progress. total is -1 when unknown.
type ProgressFunc func(done, total int64)

// ContentFetcher retrieves path and chapter payloads from the content API.
type ContentFetcher interface {
	// Fetch downloads the content for a scope, reporting progress as bytes arrive.
	// Transport failures wrap domain.ErrNetwork.
	Fetch(ctx context.Context, scope domain.Scope, progress ProgressFunc) (*domain.Content, error)
}

// MutationReplayer delivers a queued write to the backend.
type MutationReplayer interface {
	// Replay sends the mutation. Transport failures wrap domain.ErrNetwork,
	// 5xx answers wrap domain.ErrServer, other refusals wrap domain.ErrRejected.
	Replay(ctx context.Context, m domain.PendingMutation) error
}

// ConnectivityProbe checks whether the backend is reachable.
type ConnectivityProbe interface {
	// Probe returns domain.Online when the backend answered.
	Probe(ctx context.Context) domain.NetworkState
}
