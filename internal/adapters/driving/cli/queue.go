package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect writes waiting to be replayed",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending mutations, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runQueueList,
}

var queueDropCmd = &cobra.Command{
	Use:   "drop <mutation-id>",
	Short: "Remove a pending mutation without sending it",
	Long: `Removes one queued write. Use it for a write the backend keeps
rejecting, which otherwise holds back every write queued after it.
The write is lost.`,
	Args: cobra.ExactArgs(1),
	RunE: runQueueDrop,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay pending mutations now",
	Long: `Replays writes recorded while offline, oldest first. Replay stops at the
first failure and leaves that write and everything after it queued.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDropCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(syncCmd)
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	if syncAgent == nil {
		return errNotConfigured("sync service")
	}

	pending, err := syncAgent.Pending(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(pending) == 0 {
		fmt.Fprintln(out, "No pending mutations.")
		return nil
	}
	for _, m := range pending {
		line := fmt.Sprintf("%s  %-17s %s", m.ID, m.Kind, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if m.Attempts > 0 {
			line += styles.Warning.Render(fmt.Sprintf("  %d failed: %s", m.Attempts, m.LastError))
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "%d pending\n", len(pending))
	return nil
}

func runQueueDrop(cmd *cobra.Command, args []string) error {
	if syncAgent == nil {
		return errNotConfigured("sync service")
	}

	err := syncAgent.Drop(cmd.Context(), args[0])
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("no pending mutation %s", args[0])
	case errors.Is(err, domain.ErrSyncInProgress):
		return errors.New("a sync is running, try again when it finishes")
	case err != nil:
		return err
	}
	cmd.Printf("Dropped %s\n", args[0])
	return nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncAgent == nil {
		return errNotConfigured("sync service")
	}

	ctx := cmd.Context()
	refreshNetwork(ctx)

	result, err := syncAgent.Flush(ctx)
	switch {
	case errors.Is(err, domain.ErrNetwork):
		return fmt.Errorf("backend unreachable, %d mutations stay queued", result.Remaining)
	case errors.Is(err, domain.ErrSyncInProgress):
		return errors.New("a sync is already running")
	case err != nil:
		cmd.Printf("Replayed %d, %d remaining\n", result.Replayed, result.Remaining)
		return fmt.Errorf("sync stopped: %w", err)
	}

	cmd.Printf("Replayed %d mutations, %d remaining\n", result.Replayed, result.Remaining)
	return nil
}
