package services

import (
	"context"
	"sync"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure NetworkMonitor implements the interface.
var _ driving.NetworkMonitor = (*NetworkMonitor)(nil)

type listenerEntry struct {
	id uint64
	fn driving.NetworkListener
}

// NetworkMonitor tracks connectivity as a two-state machine.
//
// Listeners run synchronously inside SetState, once per real transition and
// in registration order. Transitions are serialised, so a listener observes
// transitions in the order they happened. A listener must not call SetState.
type NetworkMonitor struct {
	metrics driven.Metrics

	// transition serialises SetState including listener callbacks.
	transition sync.Mutex

	mu        sync.RWMutex
	state     domain.NetworkState
	listeners []listenerEntry
	nextID    uint64
	forced    bool
}

// NewNetworkMonitor creates a monitor in the given initial state.
// Metrics may be nil.
func NewNetworkMonitor(initial domain.NetworkState, metrics driven.Metrics) *NetworkMonitor {
	if !initial.IsValid() {
		initial = domain.Offline
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &NetworkMonitor{
		state:   initial,
		metrics: metrics,
	}
}

// State returns the current connectivity state.
func (m *NetworkMonitor) State() domain.NetworkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsOnline reports whether the monitor is Online.
func (m *NetworkMonitor) IsOnline() bool {
	return m.State() == domain.Online
}

// SetState applies a transition. It returns false, and notifies nobody,
// when the state is unchanged or invalid.
func (m *NetworkMonitor) SetState(state domain.NetworkState) bool {
	if !state.IsValid() {
		return false
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	m.mu.Lock()
	if m.forced && state == domain.Online {
		m.mu.Unlock()
		return false
	}
	from := m.state
	if from == state {
		m.mu.Unlock()
		return false
	}
	m.state = state
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	logger.Info("Network %s -> %s", from, state)
	m.metrics.NetworkTransition(state)

	for _, l := range listeners {
		l.fn(from, state)
	}
	return true
}

// SetForcedOffline pins the monitor to Offline. Releasing the pin leaves the
// state Offline until the next probe or SetState reports Online.
func (m *NetworkMonitor) SetForcedOffline(forced bool) {
	m.mu.Lock()
	m.forced = forced
	m.mu.Unlock()

	if forced {
		m.SetState(domain.Offline)
	}
}

// AddListener registers a callback for state transitions.
// The returned unsubscribe function is safe to call more than once.
func (m *NetworkMonitor) AddListener(listener driving.NetworkListener) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: listener})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Watch polls the probe every interval and feeds the result into SetState.
// The first probe runs immediately. Blocks until ctx is cancelled.
func (m *NetworkMonitor) Watch(ctx context.Context, probe driven.ConnectivityProbe, interval time.Duration) error {
	if probe == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	m.probeOnce(ctx, probe)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.probeOnce(ctx, probe)
		}
	}
}

// probeOnce applies a probe result unless ctx was cancelled while probing.
func (m *NetworkMonitor) probeOnce(ctx context.Context, probe driven.ConnectivityProbe) {
	state := probe.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	m.SetState(state)
}
