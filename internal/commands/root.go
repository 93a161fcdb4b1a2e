package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ledgerfeed",
		Short:   "Bank statement ingestion and enrichment",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newRecurringCommand())
	rootCmd.AddCommand(newTransfersCommand())

	return rootCmd
}
