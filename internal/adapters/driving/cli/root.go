// Package cli implements the swm command line.
//
// Commands talk to the core through driving ports held in package variables.
// The root command assembles an app.App before any command that needs one
// runs; tests replace loadServices to inject mocks instead.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/app"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// annotationNoServices marks commands that run without the application.
const annotationNoServices = "swm/no-services"

var version = "dev"

var (
	verboseFlag   bool
	configDirFlag string
	ephemeralFlag bool
)

// Services used by the commands.
var (
	application         *app.App
	downloadCoordinator driving.DownloadCoordinator
	syncAgent           driving.SyncAgent
	networkMonitor      driving.NetworkMonitor
	progressRecorder    driving.ProgressRecorder
	learningTracker     driving.LearningTracker
	settingsService     driving.SettingsService
)

// loadServices fills the service variables. Replaced in tests.
var loadServices = loadApplication

// refreshNetwork probes connectivity before commands that need the backend.
var refreshNetwork = func(ctx context.Context) {
	if application != nil {
		application.RefreshNetwork(ctx)
	}
}

var rootCmd = &cobra.Command{
	Use:   "swm",
	Short: "Offline content manager for the study platform",
	Long: `swm downloads learning paths and chapters for offline study and
replays progress recorded while offline once the backend is reachable.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupServices,
	PersistentPostRun: func(*cobra.Command, []string) {
		closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print debug logs to stderr")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "configuration directory (default ~/.swm)")
	rootCmd.PersistentFlags().BoolVar(&ephemeralFlag, "ephemeral", false, "keep content and queue in memory")
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag)
	if cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	return loadServices(cmd)
}

func loadApplication(cmd *cobra.Command) error {
	if application != nil {
		return nil
	}

	opts := app.Options{
		ConfigDir: configDirFlag,
		Ephemeral: ephemeralFlag,
	}
	if cmd == daemonCmd {
		opts.Registerer = metricsRegistry
	}

	a, err := app.New(opts)
	if err != nil {
		return fmt.Errorf("starting swm: %w", err)
	}

	application = a
	downloadCoordinator = a.Downloads
	syncAgent = a.Sync
	networkMonitor = a.Network
	progressRecorder = a.Progress
	learningTracker = a.Tracker
	settingsService = a.Settings
	return nil
}

func closeServices() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		logger.Error("closing store: %v", err)
	}
	application = nil
	downloadCoordinator = nil
	syncAgent = nil
	networkMonitor = nil
	progressRecorder = nil
	learningTracker = nil
	settingsService = nil
}

// errNotConfigured is returned when a command runs without its service.
func errNotConfigured(name string) error {
	return errors.New(name + " not configured")
}
