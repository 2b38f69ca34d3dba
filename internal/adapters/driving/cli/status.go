package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

var listType string

var statusCmd = &cobra.Command{
	Use:   "status [path-id]",
	Short: "Show offline status",
	Long: `Without arguments, shows connectivity, stored content and the pending
queue. With a path ID, shows which chapters of that path are available
offline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List downloaded content",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "only list path or chapter records")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if downloadCoordinator == nil {
		return errNotConfigured("download service")
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		status, err := downloadCoordinator.PathStatus(ctx, args[0])
		if err != nil {
			return err
		}
		printPathStatus(out, status)
		return nil
	}

	refreshNetwork(ctx)

	fmt.Fprintln(out, styles.Title.Render("Offline Status"))
	if networkMonitor != nil {
		state := networkMonitor.State()
		style := styles.Warning
		if state == domain.Online {
			style = styles.Success
		}
		fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("Network"), style.Render(state.String()))
	}

	records, err := downloadCoordinator.List(ctx, "")
	if err != nil {
		return err
	}
	var total int64
	paths, chapters := 0, 0
	for _, r := range records {
		total += r.SizeBytes
		if r.Scope.Type == domain.ScopePath {
			paths++
		} else {
			chapters++
		}
	}
	fmt.Fprintf(out, "  %s%d paths, %d chapters\n", styles.Key.Render("Downloaded"), paths, chapters)
	fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("Storage used"), formatBytes(total))

	if active := downloadCoordinator.Active(); len(active) > 0 {
		names := make([]string, len(active))
		for i, s := range active {
			names[i] = s.String()
		}
		fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("In progress"), strings.Join(names, ", "))
	}

	if syncAgent != nil {
		st, err := syncAgent.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s%d\n", styles.Key.Render("Pending mutations"), st.Pending)
		if !st.LastFlush.IsZero() {
			fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("Last sync"), st.LastFlush.Local().Format(time.RFC3339))
		}
		if st.LastError != "" {
			fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("Last sync error"), styles.Error.Render(st.LastError))
		}
	}
	return nil
}

func printPathStatus(out io.Writer, status *domain.PathStatus) {
	fmt.Fprintln(out, styles.Title.Render("Path "+status.PathID))
	if !status.PathDownloaded {
		fmt.Fprintln(out, "  Not downloaded.")
		return
	}

	have := make(map[string]bool, len(status.DownloadedChapters))
	for _, id := range status.DownloadedChapters {
		have[id] = true
	}
	for _, id := range status.ChapterIDs {
		mark := styles.Muted.Render("missing")
		if have[id] {
			mark = styles.Success.Render("offline")
		}
		fmt.Fprintf(out, "  %s%s\n", styles.Key.Render(id), mark)
	}

	if status.Complete() {
		fmt.Fprintln(out, styles.Success.Render("Complete: available offline."))
		return
	}
	fmt.Fprintf(out, "%d of %d chapters available offline.\n",
		len(status.DownloadedChapters), len(status.ChapterIDs))
}

func runList(cmd *cobra.Command, _ []string) error {
	if downloadCoordinator == nil {
		return errNotConfigured("download service")
	}

	var scopeType domain.ScopeType
	if listType != "" {
		t, err := domain.ParseScopeType(listType)
		if err != nil {
			return err
		}
		scopeType = t
	}

	records, err := downloadCoordinator.List(cmd.Context(), scopeType)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No offline content.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%-40s %10s  %s\n",
			r.Scope, formatBytes(r.SizeBytes), r.DownloadedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
