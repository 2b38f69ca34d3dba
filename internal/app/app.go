// Package app assembles the offline services once at startup.
//
// An App is the only place adapters are chosen and wired together. Driving
// adapters (CLI, MCP) receive the services it holds through their ports.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/backend"
	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/config/file"
	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/metrics"
	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/memory"
	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/sqlite"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/services"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Options controls how the App is assembled.
type Options struct {
	// ConfigDir holds config.toml. Empty means ~/.swm.
	ConfigDir string

	// Ephemeral keeps content and the mutation queue in memory.
	Ephemeral bool

	// Registerer receives the Prometheus metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// ConfigStore overrides the TOML config store. Mostly useful in tests.
	ConfigStore driven.ConfigStore

	// Backend overrides the HTTP client. Mostly useful in tests.
	Backend Backend
}

// Backend is everything the App needs from the study platform API.
type Backend interface {
	driven.ContentFetcher
	driven.MutationReplayer
	driven.ConnectivityProbe
}

// quotaSetter is implemented by content stores whose quota can change live.
type quotaSetter interface {
	SetQuota(bytes int64)
}

// App holds every service for the lifetime of the process.
type App struct {
	Config    driven.ConfigStore
	Settings  *services.SettingsService
	Content   driven.ContentStore
	Queue     driven.MutationQueue
	Backend   Backend
	Metrics   *metrics.Metrics
	Network   *services.NetworkMonitor
	Downloads *services.DownloadService
	Sync      *services.SyncAgent
	Progress  *services.ProgressService
	Tracker   *services.LearningTimeTracker
	Scheduler *services.Scheduler

	store *sqlite.Store

	mu       sync.RWMutex
	settings domain.OfflineSettings
}

// New opens the stores and builds the services. The network monitor starts
// Offline; call RefreshNetwork or Watch to learn the real state.
func New(opts Options) (*App, error) {
	cfg := opts.ConfigStore
	if cfg == nil {
		fileStore, err := file.NewConfigStore(opts.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		cfg = fileStore
	}

	settingsSvc := services.NewSettingsService(cfg)
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Settings: settingsSvc,
		settings: *settings,
	}

	var schedulerStore driven.SchedulerStore
	if opts.Ephemeral {
		logger.Debug("Using in-memory storage")
		a.Content = memory.NewContentStore(settings.Storage.QuotaBytes)
		a.Queue = memory.NewMutationQueue()
		schedulerStore = memory.NewSchedulerStore()
	} else {
		dataDir := settings.Storage.DataDir
		if dataDir == "" && opts.ConfigDir != "" {
			dataDir = filepath.Join(opts.ConfigDir, "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening offline store: %w", err)
		}
		store.SetQuota(settings.Storage.QuotaBytes)
		logger.Debug("Offline store at %s", store.Path())
		a.store = store
		a.Content = store.ContentStore()
		a.Queue = store.MutationQueue()
		schedulerStore = store.SchedulerStore()
	}

	a.Backend = opts.Backend
	if a.Backend == nil {
		client, err := backend.NewClient(backend.Config{
			BaseURL: settings.Backend.URL,
			Timeout: settings.Backend.Timeout,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating backend client: %w", err)
		}
		a.Backend = client
	}

	var m driven.Metrics = driven.NopMetrics{}
	if opts.Registerer != nil {
		a.Metrics = metrics.NewMetrics(opts.Registerer)
		m = a.Metrics
	}

	a.Network = services.NewNetworkMonitor(domain.Offline, m)
	a.Network.SetForcedOffline(settings.Network.ForceOffline)

	a.Downloads = services.NewDownloadService(a.Content, a.Backend, a.Network, m)
	a.Sync = services.NewSyncAgent(a.Queue, a.Backend, a.Network, settings.Sync.ReplayRate, m)
	a.Progress = services.NewProgressService(a.Queue, a.Backend, a.Network, m)
	a.Tracker = services.NewLearningTimeTracker(a.Progress, settings.Tracker.IdleTimeout)

	schedCfg := domain.DefaultSchedulerConfig()
	schedCfg.TaskConfigs[domain.TaskIDMutationReplay] = domain.TaskConfig{
		Enabled:  settings.Sync.Interval > 0,
		Interval: settings.Sync.Interval,
	}
	a.Scheduler = services.NewScheduler(schedCfg, schedulerStore)
	a.registerTasks()

	return a, nil
}

// registerTasks wires the background tasks to the services.
func (a *App) registerTasks() {
	a.Scheduler.Register(domain.TaskIDMutationReplay, "Replay pending mutations",
		func(ctx context.Context) (int, error) {
			if !a.Network.IsOnline() {
				return 0, nil
			}
			result, err := a.Sync.Flush(ctx)
			if errors.Is(err, domain.ErrSyncInProgress) {
				return 0, nil
			}
			return result.Replayed, err
		})

	a.Scheduler.Register(domain.TaskIDStorageReport, "Report offline storage usage",
		func(ctx context.Context) (int, error) {
			records, err := a.Content.List(ctx, "")
			if err != nil {
				return 0, err
			}
			usage, err := a.Content.Usage(ctx)
			if err != nil {
				return 0, err
			}
			logger.Info("Offline storage: %d items, %d bytes", len(records), usage)
			return len(records), nil
		})
}

// SettingsSnapshot returns the settings the App was built or last reloaded with.
func (a *App) SettingsSnapshot() domain.OfflineSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// RefreshNetwork probes the backend once and applies the result.
func (a *App) RefreshNetwork(ctx context.Context) domain.NetworkState {
	a.Network.SetState(a.Backend.Probe(ctx))
	return a.Network.State()
}

// WatchNetwork polls connectivity until ctx is cancelled.
func (a *App) WatchNetwork(ctx context.Context) error {
	return a.Network.Watch(ctx, a.Backend, a.SettingsSnapshot().Network.ProbeInterval)
}

// Reload re-reads the settings and applies what can change without a
// restart: quota, forced offline and replay rate.
func (a *App) Reload() error {
	settings, err := a.Settings.Get()
	if err != nil {
		return err
	}

	if qs, ok := a.Content.(quotaSetter); ok {
		qs.SetQuota(settings.Storage.QuotaBytes)
	} else if a.store != nil {
		a.store.SetQuota(settings.Storage.QuotaBytes)
	}
	a.Network.SetForcedOffline(settings.Network.ForceOffline)
	a.Sync.SetReplayRate(settings.Sync.ReplayRate)

	a.mu.Lock()
	if settings.Backend.URL != a.settings.Backend.URL {
		logger.Warn("backend.url changed to %s; restart to apply", settings.Backend.URL)
	}
	a.settings = *settings
	a.mu.Unlock()
	logger.Info("Configuration reloaded")
	return nil
}

// Close releases the stores.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
