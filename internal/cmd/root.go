package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for subcheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subcheck",
		Short: "Coursework submission structure checker",
		Long: `Subcheck validates that a coursework submission follows the directory
structure an assignment expects before it is handed in.

It checks a submission archive or directory against an assignment
structure document, inspects any git repository the submission must
contain, and reports problems grouped by severity.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewCheckCommand())
	cmd.AddCommand(NewFetchCommand())
	cmd.AddCommand(NewDescribeCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
