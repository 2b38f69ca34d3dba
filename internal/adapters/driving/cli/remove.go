package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearConfirmed bool

var removeCmd = &cobra.Command{
	Use:     "remove <path|chapter> <id>",
	Aliases: []string{"rm"},
	Short:   "Remove downloaded content",
	Long: `Removes a downloaded path or chapter from offline storage.
Removing content that is not downloaded is not an error.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemove,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all downloaded content",
	Long: `Removes every downloaded path and chapter. Pending progress updates
are kept and still replayed.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearConfirmed, "yes", "y", false, "confirm removal of all content")
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if downloadCoordinator == nil {
		return errNotConfigured("download service")
	}

	scope, err := parseScope(args[0], args[1])
	if err != nil {
		return err
	}
	if err := downloadCoordinator.Delete(cmd.Context(), scope); err != nil {
		return fmt.Errorf("remove %s: %w", scope, err)
	}
	cmd.Printf("Removed %s\n", scope)
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if downloadCoordinator == nil {
		return errNotConfigured("download service")
	}
	if !clearConfirmed {
		return errors.New("refusing to clear offline content without --yes")
	}

	if err := downloadCoordinator.Clear(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("All offline content removed.")
	return nil
}
