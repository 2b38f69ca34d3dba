package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

var studyPathID string

var studyCmd = &cobra.Command{
	Use:   "study <chapter-id>",
	Short: "Track study time for a chapter",
	Long: `Runs a study session in the foreground and records the active time
when it ends. The clock pauses on its own after the configured idle
timeout; press Enter to mark activity.

Input, one per line:
  (empty) or a   mark activity
  p              pause
  r              resume
  s              show the session
  q              stop and record

Interrupting the command or closing input also stops and records.`,
	Args: cobra.ExactArgs(1),
	RunE: runStudy,
}

func init() {
	studyCmd.Flags().StringVar(&studyPathID, "path", "", "learning path the chapter belongs to")
	rootCmd.AddCommand(studyCmd)
}

func runStudy(cmd *cobra.Command, args []string) error {
	if learningTracker == nil {
		return errNotConfigured("learning tracker")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	chapterID := args[0]

	refreshNetwork(ctx)
	if err := learningTracker.Start(ctx, studyPathID, chapterID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Studying chapter %s. Enter marks activity, p pauses, r resumes, s shows the session, q stops.\n",
		chapterID)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(cmd.InOrStdin(), done)

	for {
		select {
		case <-ctx.Done():
			return finishStudy(context.WithoutCancel(ctx), out, chapterID)
		case line, ok := <-lines:
			if !ok {
				return finishStudy(ctx, out, chapterID)
			}
			switch line {
			case "", "a":
				learningTracker.Activity()
			case "p":
				learningTracker.Pause()
				fmt.Fprintln(out, styles.Muted.Render("Paused."))
			case "r":
				learningTracker.Resume()
				fmt.Fprintln(out, "Resumed.")
			case "s":
				printStudySession(out, learningTracker.Current())
			case "q":
				return finishStudy(ctx, out, chapterID)
			default:
				fmt.Fprintf(out, "Unknown input %q\n", line)
			}
		}
	}
}

// readLines streams trimmed lines from r until EOF or done closes.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.ToLower(strings.TrimSpace(scanner.Text())):
			case <-done:
				return
			}
		}
	}()
	return lines
}

func printStudySession(out io.Writer, s *domain.StudySession) {
	if s == nil {
		fmt.Fprintln(out, "No session running.")
		return
	}
	state := styles.Success.Render("studying")
	if s.Paused {
		state = styles.Muted.Render("paused")
	}
	fmt.Fprintf(out, "  %s%s\n", styles.Key.Render("Chapter"), s.ChapterID)
	fmt.Fprintf(out, "  %s%s (%s)\n", styles.Key.Render("Active"), s.Active.Round(time.Second), state)
}

func finishStudy(ctx context.Context, out io.Writer, chapterID string) error {
	active, err := learningTracker.Stop(ctx)
	if err != nil {
		return err
	}
	if active < time.Second {
		fmt.Fprintln(out, "Session shorter than a second, nothing recorded.")
		return nil
	}
	fmt.Fprintf(out, "Recorded %s of study time on chapter %s\n", active.Round(time.Second), chapterID)
	return nil
}
