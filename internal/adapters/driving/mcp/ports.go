package mcp

import (
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Downloads manages offline content.
	Downloads driving.DownloadCoordinator

	// Sync replays queued mutations. Optional.
	Sync driving.SyncAgent

	// Network reports connectivity. Optional; without it the state is unknown.
	Network driving.NetworkMonitor

	// Progress records learner writes. Optional.
	Progress driving.ProgressRecorder

	// Tracker measures study time. Optional.
	Tracker driving.LearningTracker
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Downloads == nil {
		return ErrMissingDownloadService
	}
	return nil
}
