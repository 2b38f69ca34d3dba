package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

var progressChapterID string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Record learning progress",
	Long: `Sends learning progress to the backend. While the backend is
unreachable, or while older writes are still queued, the write is queued
and replayed later in the order it was made.`,
}

var progressUpdateCmd = &cobra.Command{
	Use:   "update <path-id> <percent>",
	Short: "Record how far a learning path has progressed",
	Args:  cobra.ExactArgs(2),
	RunE:  runProgressUpdate,
}

var progressCompleteCmd = &cobra.Command{
	Use:   "complete <chapter-id>",
	Short: "Mark a chapter as completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgressComplete,
}

var progressRecordCmd = &cobra.Command{
	Use:   "record <kind> <json>",
	Short: "Record a raw write",
	Long: `Records a write with a JSON body. Kinds:

  progress-update
  learning-time
  chapter-complete`,
	Args: cobra.ExactArgs(2),
	RunE: runProgressRecord,
}

func init() {
	progressUpdateCmd.Flags().StringVar(&progressChapterID, "chapter", "", "chapter the progress was made in")
	progressCmd.AddCommand(progressUpdateCmd)
	progressCmd.AddCommand(progressCompleteCmd)
	progressCmd.AddCommand(progressRecordCmd)
	rootCmd.AddCommand(progressCmd)
}

// chapterComplete is the body of a chapter-complete write.
type chapterComplete struct {
	ChapterID   string    `json:"chapter_id"`
	CompletedAt time.Time `json:"completed_at"`
}

func runProgressUpdate(cmd *cobra.Command, args []string) error {
	percent, err := strconv.Atoi(args[1])
	if err != nil || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: percent must be a whole number from 0 to 100", domain.ErrInvalidInput)
	}
	if args[0] == "" {
		return fmt.Errorf("%w: path id is required", domain.ErrInvalidInput)
	}
	return recordProgress(cmd, domain.MutationProgressUpdate, domain.ProgressUpdate{
		PathID:    args[0],
		ChapterID: progressChapterID,
		Percent:   percent,
		UpdatedAt: time.Now().UTC(),
	})
}

func runProgressComplete(cmd *cobra.Command, args []string) error {
	if args[0] == "" {
		return fmt.Errorf("%w: chapter id is required", domain.ErrInvalidInput)
	}
	return recordProgress(cmd, domain.MutationChapterComplete, chapterComplete{
		ChapterID:   args[0],
		CompletedAt: time.Now().UTC(),
	})
}

func runProgressRecord(cmd *cobra.Command, args []string) error {
	return recordProgress(cmd, domain.MutationKind(args[0]), json.RawMessage(args[1]))
}

func recordProgress(cmd *cobra.Command, kind domain.MutationKind, payload any) error {
	if progressRecorder == nil {
		return errNotConfigured("progress recorder")
	}

	ctx := cmd.Context()
	refreshNetwork(ctx)

	queued, err := progressRecorder.Record(ctx, kind, payload)
	if err != nil {
		return fmt.Errorf("record %s: %w", kind, err)
	}
	if queued {
		cmd.Printf("%s %s, it will be sent when the backend is reachable\n",
			styles.Warning.Render("Queued"), kind)
		return nil
	}
	cmd.Printf("%s %s\n", styles.Success.Render("Sent"), kind)
	return nil
}
