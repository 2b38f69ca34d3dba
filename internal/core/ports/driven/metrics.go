package driven

import "github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"

// Metrics records operational counters for offline activity.
type Metrics interface {
	// DownloadFinished records the outcome of a transfer ("success", "failed", "aborted").
	DownloadFinished(scopeType domain.ScopeType, result string, bytes int64)

	// MutationReplayed records the outcome of one replay ("success", "failed").
	MutationReplayed(kind domain.MutationKind, result string)

	// NetworkTransition records a state change.
	NetworkTransition(to domain.NetworkState)

	// PendingMutations sets the current queue depth.
	PendingMutations(n int)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) DownloadFinished(domain.ScopeType, string, int64) {}
func (NopMetrics) MutationReplayed(domain.MutationKind, string)     {}
func (NopMetrics) NetworkTransition(domain.NetworkState)            {}
func (NopMetrics) PendingMutations(int)                             {}
