package driving

import "github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"

// NetworkListener is notified on each real connectivity transition.
type NetworkListener func(from, to domain.NetworkState)

// NetworkMonitor is a two-state subscribable connectivity state machine.
type NetworkMonitor interface {
	// State returns the current connectivity state.
	State() domain.NetworkState

	// IsOnline is shorthand for State() == domain.Online.
	IsOnline() bool

	// SetState applies a transition and returns false when nothing changed.
	SetState(state domain.NetworkState) bool

	// AddListener registers a callback and returns its unsubscribe function.
	AddListener(listener NetworkListener) (unsubscribe func())
}
