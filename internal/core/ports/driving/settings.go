package driving

import "github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the resolved settings with defaults applied.
	Get() (*domain.OfflineSettings, error)

	// Set validates and persists a single setting by key.
	Set(key, value string) error

	// Keys lists the supported setting keys.
	Keys() []string
}
