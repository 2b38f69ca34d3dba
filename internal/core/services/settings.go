package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	KeyBackendURL            = "backend.url"
	KeyBackendTimeoutSeconds = "backend.timeout_seconds"
	KeyStorageDataDir        = "storage.data_dir"
	KeyStorageQuotaBytes     = "storage.quota_bytes"
	KeyNetworkProbeSeconds   = "network.probe_interval_seconds"
	KeyNetworkForceOffline   = "network.force_offline"
	KeySyncReplayRate        = "sync.replay_rate"
	KeySyncIntervalMinutes   = "sync.interval_minutes"
	KeyTrackerIdleSeconds    = "tracker.idle_timeout_seconds"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
)

// settingKinds drives parsing in Set.
var settingKinds = map[string]settingKind{
	KeyBackendURL:            kindString,
	KeyBackendTimeoutSeconds: kindInt,
	KeyStorageDataDir:        kindString,
	KeyStorageQuotaBytes:     kindInt,
	KeyNetworkProbeSeconds:   kindInt,
	KeyNetworkForceOffline:   kindBool,
	KeySyncReplayRate:        kindFloat,
	KeySyncIntervalMinutes:   kindInt,
	KeyTrackerIdleSeconds:    kindInt,
}

// SettingsService resolves typed settings from the config store.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns the settings with defaults for every missing key.
func (s *SettingsService) Get() (*domain.OfflineSettings, error) {
	d := domain.DefaultOfflineSettings()

	settings := &domain.OfflineSettings{
		Backend: domain.BackendSettings{
			URL:     s.getString(KeyBackendURL, d.Backend.URL),
			Timeout: s.getSeconds(KeyBackendTimeoutSeconds, d.Backend.Timeout),
		},
		Storage: domain.StorageSettings{
			DataDir:    s.getString(KeyStorageDataDir, d.Storage.DataDir),
			QuotaBytes: int64(s.getInt(KeyStorageQuotaBytes, int(d.Storage.QuotaBytes))),
		},
		Network: domain.NetworkSettings{
			ProbeInterval: s.getSeconds(KeyNetworkProbeSeconds, d.Network.ProbeInterval),
			ForceOffline:  s.configStore.GetBool(KeyNetworkForceOffline),
		},
		Sync: domain.SyncSettings{
			ReplayRate: s.getFloat(KeySyncReplayRate, d.Sync.ReplayRate),
			Interval:   time.Duration(s.getInt(KeySyncIntervalMinutes, int(d.Sync.Interval/time.Minute))) * time.Minute,
		},
		Tracker: domain.TrackerSettings{
			IdleTimeout: s.getSeconds(KeyTrackerIdleSeconds, d.Tracker.IdleTimeout),
		},
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Set parses value for key, validates the resulting settings, and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}

	previous, existed := s.configStore.Get(key)
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	if _, err := s.Get(); err != nil {
		// Roll back so the config file never holds an unusable value.
		if existed {
			_ = s.configStore.Set(key, previous)
		} else {
			_ = s.configStore.Delete(key)
		}
		return err
	}
	return nil
}

// Keys lists the supported setting keys, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseSetting(kind settingKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.ParseInt(value, 10, 64)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

// getInt treats a present zero as a real value, unlike getString.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	return time.Duration(s.getInt(key, int(defaultVal/time.Second))) * time.Second
}
