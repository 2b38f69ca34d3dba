package cli

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

var metricsAddr string

// metricsRegistry holds the daemon's metrics.
var metricsRegistry = newMetricsRegistry()

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run connectivity monitoring and background sync",
	Long: `Runs in the foreground until interrupted:

  - polls the backend health endpoint and tracks connectivity
  - replays pending mutations whenever connectivity returns
  - retries the queue on the sync interval
  - reloads config.toml when it changes

Use --metrics-addr to expose Prometheus metrics, e.g. --metrics-addr :9090.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if application == nil {
		return errNotConfigured("application")
	}
	a := application

	logger.Section("swm daemon")
	settings := a.SettingsSnapshot()
	logger.Info("Backend %s, connectivity check every %s, queue retry every %s",
		settings.Backend.URL, settings.Network.ProbeInterval, settings.Sync.Interval)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s stopped: %v", name, err)
			}
		}()
	}

	a.Sync.Start(ctx)
	defer a.Sync.Stop()

	run("network monitor", a.WatchNetwork)
	run("scheduler", a.Scheduler.Start)

	if watcher, ok := a.Config.(driven.ConfigWatcher); ok {
		run("config watcher", func(ctx context.Context) error {
			return watcher.Watch(ctx, func() {
				if err := a.Reload(); err != nil {
					logger.Error("ignoring config change: %v", err)
				}
			})
		})
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsHandler(metricsRegistry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		run("metrics server", func(ctx context.Context) error {
			return serveUntilDone(ctx, srv)
		})
		cmd.Printf("Serving metrics on %s/metrics\n", metricsAddr)
	}

	cmd.Println("swm daemon running, press Ctrl+C to stop")
	<-ctx.Done()

	_ = a.Scheduler.Stop()
	cancel()
	wg.Wait()
	cmd.Println("swm daemon stopped")
	return nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// serveUntilDone runs srv and shuts it down when ctx ends.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
