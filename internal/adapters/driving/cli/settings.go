package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the backend, storage, network, sync and tracker settings.

Settings are stored in config.toml in the configuration directory. A running
daemon picks up changes to the quota, forced offline mode and replay rate
without a restart.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Sets a single setting. The new value is validated before it is kept.

Keys:
  backend.url                       base URL of the study platform
  backend.timeout_seconds           request timeout
  storage.data_dir                  directory of the offline database
  storage.quota_bytes               offline storage limit, 0 for none
  network.probe_interval_seconds    connectivity check interval
  network.force_offline             true to stay offline
  sync.replay_rate                  replays per second
  sync.interval_minutes             queue retry interval, 0 to disable
  tracker.idle_timeout_seconds      pause study time after inactivity`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings service")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	printSettings(cmd.OutOrStdout(), settings)
	return nil
}

func printSettings(out io.Writer, s *domain.OfflineSettings) {
	section := func(name string) {
		fmt.Fprintln(out, styles.Title.Render("["+name+"]"))
	}
	row := func(key, value string) {
		fmt.Fprintf(out, "  %s%s\n", styles.Key.Render(key), value)
	}

	section("Backend")
	row(services.KeyBackendURL, s.Backend.URL)
	row(services.KeyBackendTimeoutSeconds, seconds(s.Backend.Timeout))
	fmt.Fprintln(out)

	section("Storage")
	dataDir := s.Storage.DataDir
	if dataDir == "" {
		dataDir = styles.Muted.Render("(default)")
	}
	row(services.KeyStorageDataDir, dataDir)
	quota := "unlimited"
	if s.Storage.QuotaBytes > 0 {
		quota = fmt.Sprintf("%d (%s)", s.Storage.QuotaBytes, formatBytes(s.Storage.QuotaBytes))
	}
	row(services.KeyStorageQuotaBytes, quota)
	fmt.Fprintln(out)

	section("Network")
	row(services.KeyNetworkProbeSeconds, seconds(s.Network.ProbeInterval))
	row(services.KeyNetworkForceOffline, strconv.FormatBool(s.Network.ForceOffline))
	fmt.Fprintln(out)

	section("Sync")
	row(services.KeySyncReplayRate, strconv.FormatFloat(s.Sync.ReplayRate, 'f', -1, 64))
	row(services.KeySyncIntervalMinutes, strconv.Itoa(int(s.Sync.Interval/time.Minute)))
	fmt.Fprintln(out)

	section("Tracker")
	row(services.KeyTrackerIdleSeconds, seconds(s.Tracker.IdleTimeout))
}

func seconds(d time.Duration) string {
	return strconv.Itoa(int(d / time.Second))
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings service")
	}

	key := strings.TrimSpace(args[0])
	if err := settingsService.Set(key, args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w\nvalid keys: %s",
			key, err, strings.Join(settingsService.Keys(), ", "))
	}
	cmd.Printf("Set %s = %s\n", key, args[1])
	return nil
}
