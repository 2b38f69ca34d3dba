// Package metrics provides the Prometheus implementation of driven.Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

// Metrics tracks offline activity as Prometheus metrics.
//
// All metrics use the swm_ prefix. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// DownloadsTotal counts finished transfers by scope type and result.
	DownloadsTotal *prometheus.CounterVec

	// DownloadBytesTotal counts bytes saved by successful transfers.
	DownloadBytesTotal *prometheus.CounterVec

	// MutationsReplayedTotal counts replays by kind and result.
	MutationsReplayedTotal *prometheus.CounterVec

	// NetworkTransitionsTotal counts connectivity transitions by target state.
	NetworkTransitionsTotal *prometheus.CounterVec

	// PendingMutationsGauge is the current queue depth.
	PendingMutationsGauge prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
// Panics if registration fails (expected during initialization only).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swm_downloads_total",
				Help: "Finished offline downloads by scope type and result",
			},
			[]string{"scope_type", "result"}, // "success", "failed", "aborted"
		),
		DownloadBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swm_download_bytes_total",
				Help: "Bytes of content saved for offline use",
			},
			[]string{"scope_type"},
		),
		MutationsReplayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swm_mutations_replayed_total",
				Help: "Mutation deliveries by kind and result",
			},
			[]string{"kind", "result"},
		),
		NetworkTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swm_network_transitions_total",
				Help: "Connectivity transitions by new state",
			},
			[]string{"to"},
		),
		PendingMutationsGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "swm_pending_mutations",
				Help: "Mutations waiting to be replayed",
			},
		),
	}

	reg.MustRegister(
		m.DownloadsTotal,
		m.DownloadBytesTotal,
		m.MutationsReplayedTotal,
		m.NetworkTransitionsTotal,
		m.PendingMutationsGauge,
	)

	return m
}

// DownloadFinished records the outcome of a transfer.
func (m *Metrics) DownloadFinished(scopeType domain.ScopeType, result string, bytes int64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(string(scopeType), result).Inc()
	if bytes > 0 {
		m.DownloadBytesTotal.WithLabelValues(string(scopeType)).Add(float64(bytes))
	}
}

// MutationReplayed records one replay attempt.
func (m *Metrics) MutationReplayed(kind domain.MutationKind, result string) {
	if m == nil {
		return
	}
	m.MutationsReplayedTotal.WithLabelValues(string(kind), result).Inc()
}

// NetworkTransition records a state change.
func (m *Metrics) NetworkTransition(to domain.NetworkState) {
	if m == nil {
		return
	}
	m.NetworkTransitionsTotal.WithLabelValues(string(to)).Inc()
}

// PendingMutations sets the queue depth.
func (m *Metrics) PendingMutations(n int) {
	if m == nil {
		return
	}
	m.PendingMutationsGauge.Set(float64(n))
}
