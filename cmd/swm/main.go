// Command swm manages offline study content and replays progress recorded
// while offline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, version)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
