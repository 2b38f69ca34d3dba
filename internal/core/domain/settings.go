package domain

import (
	"fmt"
	"net/url"
	"time"
)

// OfflineSettings holds the typed application configuration.
type OfflineSettings struct {
	Backend BackendSettings
	Storage StorageSettings
	Network NetworkSettings
	Sync    SyncSettings
	Tracker TrackerSettings
}

// BackendSettings configures the content and mutation APIs.
type BackendSettings struct {
	// URL is the base URL of the study platform backend.
	URL string

	// Timeout bounds a single request.
	Timeout time.Duration
}

// StorageSettings configures local persistence.
type StorageSettings struct {
	// DataDir holds the SQLite database. Empty means ~/.swm/data.
	DataDir string

	// QuotaBytes caps total downloaded content. Zero means unlimited.
	QuotaBytes int64
}

// NetworkSettings configures connectivity detection.
type NetworkSettings struct {
	// ProbeInterval is how often the backend health endpoint is polled.
	ProbeInterval time.Duration

	// ForceOffline pins the monitor to Offline regardless of probes.
	ForceOffline bool
}

// SyncSettings configures mutation replay.
type SyncSettings struct {
	// ReplayRate is the maximum replays per second.
	ReplayRate float64

	// Interval is how often the scheduler retries the queue.
	Interval time.Duration
}

// TrackerSettings configures learning-time tracking.
type TrackerSettings struct {
	// IdleTimeout pauses a session after this long without activity.
	IdleTimeout time.Duration
}

// DefaultOfflineSettings returns the built-in defaults.
func DefaultOfflineSettings() OfflineSettings {
	return OfflineSettings{
		Backend: BackendSettings{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Network: NetworkSettings{
			ProbeInterval: 15 * time.Second,
		},
		Sync: SyncSettings{
			ReplayRate: 5,
			Interval:   15 * time.Minute,
		},
		Tracker: TrackerSettings{
			IdleTimeout: 5 * time.Minute,
		},
	}
}

// Validate checks the settings are usable.
func (s *OfflineSettings) Validate() error {
	u, err := url.Parse(s.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend url %q", ErrInvalidInput, s.Backend.URL)
	}
	if s.Backend.Timeout <= 0 {
		return fmt.Errorf("%w: backend timeout must be positive", ErrInvalidInput)
	}
	if s.Storage.QuotaBytes < 0 {
		return fmt.Errorf("%w: storage quota must not be negative", ErrInvalidInput)
	}
	if s.Network.ProbeInterval <= 0 {
		return fmt.Errorf("%w: probe interval must be positive", ErrInvalidInput)
	}
	if s.Sync.ReplayRate <= 0 {
		return fmt.Errorf("%w: replay rate must be positive", ErrInvalidInput)
	}
	if s.Tracker.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalidInput)
	}
	return nil
}
