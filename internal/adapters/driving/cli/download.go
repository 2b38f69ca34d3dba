package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

var downloadWithChapters bool

var downloadCmd = &cobra.Command{
	Use:   "download <path|chapter> <id>",
	Short: "Download a learning path or chapter for offline use",
	Long: `Downloads content from the backend and stores it locally.

A path download stores the path itself. Use --with-chapters to download
every chapter of the path as well, which makes the whole path available
offline.

Interrupting the command aborts a transfer that has not been saved yet.`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadWithChapters, "with-chapters", false,
		"also download every chapter of a path")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if downloadCoordinator == nil {
		return errNotConfigured("download service")
	}

	scope, err := parseScope(args[0], args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	refreshNetwork(ctx)

	out := cmd.OutOrStdout()
	record, err := downloadWithProgress(ctx, out, downloadCoordinator, scope)
	if err != nil {
		return fmt.Errorf("download %s: %w", scope, err)
	}
	fmt.Fprintf(out, "%s %s (%s)\n", styles.Success.Render("Downloaded"), scope, formatBytes(record.SizeBytes))

	if scope.Type != domain.ScopePath || !downloadWithChapters {
		return nil
	}
	if len(record.ChapterIDs) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("Path lists no chapters."))
		return nil
	}
	return downloadChapters(ctx, out, downloadCoordinator, record.ChapterIDs)
}

func parseScope(typ, id string) (domain.Scope, error) {
	scopeType, err := domain.ParseScopeType(typ)
	if err != nil {
		return domain.Scope{}, err
	}
	scope := domain.Scope{Type: scopeType, ID: id}
	return scope, scope.Validate()
}

// downloadWithProgress runs one download, drawing a progress bar when out is
// a terminal. Cancelling ctx closes the subscription, which aborts a
// transfer nobody else is waiting for.
func downloadWithProgress(
	ctx context.Context,
	out io.Writer,
	coordinator driving.DownloadCoordinator,
	scope domain.Scope,
) (*domain.DownloadRecord, error) {
	dl, err := coordinator.Download(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer dl.Close()

	tty := isTerminal(out)
	width := terminalWidth(out, 80) - len(scope.String()) - 20

	updates := dl.Updates()
	for updates != nil {
		select {
		case <-ctx.Done():
			if tty {
				fmt.Fprintln(out)
			}
			return nil, ctx.Err()
		case pct, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if tty {
				fmt.Fprintf(out, "\r%s %s %3d%%", scope, progressBar(pct, width), pct)
			}
		}
	}
	if tty {
		fmt.Fprintln(out)
	}

	return dl.Wait(ctx)
}

// downloadChapters downloads chapters concurrently, at most four at a time,
// and reports each outcome. Returns an error when any chapter failed.
func downloadChapters(
	ctx context.Context,
	out io.Writer,
	coordinator driving.DownloadCoordinator,
	chapterIDs []string,
) error {
	type outcome struct {
		scope  domain.Scope
		record *domain.DownloadRecord
		err    error
	}

	results := make([]outcome, len(chapterIDs))
	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup

	for i, id := range chapterIDs {
		scope := domain.ChapterScope(id)
		results[i].scope = scope

		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i].err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			dl, err := coordinator.Download(ctx, scope)
			if err != nil {
				results[i].err = err
				return
			}
			defer dl.Close()
			results[i].record, results[i].err = dl.Wait(ctx)
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s: %v\n", styles.Error.Render("failed"), r.scope, r.err)
			continue
		}
		fmt.Fprintf(out, "  %s %s (%s)\n", styles.Success.Render("ok"), r.scope, formatBytes(r.record.SizeBytes))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d chapters failed", failed, len(chapterIDs))
	}
	fmt.Fprintf(out, "All %d chapters downloaded.\n", len(chapterIDs))
	return nil
}
