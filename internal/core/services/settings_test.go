package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/memory"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultOfflineSettings(), *settings)
}

func TestSettingsService_Get_StoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(KeyBackendURL, "https://study.example.com")
	_ = store.Set(KeyBackendTimeoutSeconds, int64(10))
	_ = store.Set(KeyStorageQuotaBytes, int64(0))
	_ = store.Set(KeyNetworkForceOffline, true)
	_ = store.Set(KeySyncReplayRate, 0.5)
	_ = store.Set(KeySyncIntervalMinutes, int64(30))
	_ = store.Set(KeyTrackerIdleSeconds, int64(90))

	settings, err := NewSettingsService(store).Get()
	require.NoError(t, err)
	assert.Equal(t, "https://study.example.com", settings.Backend.URL)
	assert.Equal(t, 10*time.Second, settings.Backend.Timeout)
	assert.Zero(t, settings.Storage.QuotaBytes)
	assert.True(t, settings.Network.ForceOffline)
	assert.InDelta(t, 0.5, settings.Sync.ReplayRate, 1e-9)
	assert.Equal(t, 30*time.Minute, settings.Sync.Interval)
	assert.Equal(t, 90*time.Second, settings.Tracker.IdleTimeout)
}

func TestSettingsService_Get_InvalidStoredValue(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set(KeyBackendTimeoutSeconds, int64(0))

	_, err := NewSettingsService(store).Get()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	require.NoError(t, svc.Set(KeyStorageQuotaBytes, " 1048576 "))
	require.NoError(t, svc.Set(KeySyncReplayRate, "2.5"))
	require.NoError(t, svc.Set(KeyNetworkForceOffline, "true"))
	require.NoError(t, svc.Set(KeyBackendURL, "https://api.example.com"))

	val, _ := store.Get(KeyStorageQuotaBytes)
	assert.Equal(t, int64(1048576), val)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), settings.Storage.QuotaBytes)
	assert.InDelta(t, 2.5, settings.Sync.ReplayRate, 1e-9)
	assert.True(t, settings.Network.ForceOffline)
	assert.Equal(t, "https://api.example.com", settings.Backend.URL)
}

func TestSettingsService_Set_UnknownKey(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	err := svc.Set("colour.theme", "dark")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_Set_Unparseable(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	assert.ErrorIs(t, svc.Set(KeyBackendTimeoutSeconds, "soon"), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Set(KeyNetworkForceOffline, "maybe"), domain.ErrInvalidInput)

	_, ok := store.Get(KeyBackendTimeoutSeconds)
	assert.False(t, ok)
}

func TestSettingsService_Set_RollsBackInvalidValue(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	// No previous value: the key is removed again.
	err := svc.Set(KeyBackendTimeoutSeconds, "0")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, ok := store.Get(KeyBackendTimeoutSeconds)
	assert.False(t, ok)

	// Previous value: it is restored.
	require.NoError(t, svc.Set(KeyBackendURL, "https://api.example.com"))
	err = svc.Set(KeyBackendURL, "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, "https://api.example.com", store.GetString(KeyBackendURL))
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()

	assert.Len(t, keys, 9)
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, KeySyncReplayRate)
}
