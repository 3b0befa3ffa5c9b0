package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/subcheck/internal/assignment"
)

// NewDescribeCommand creates and returns the describe subcommand
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <structure-doc>",
		Short: "Show the directory structure an assignment expects",
		Long: `Read a local structure document and print the assignment's name, the
branch submissions are marked on, and the expected directory layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, args[0])
		},
		SilenceUsage: true,
	}

	return cmd
}

func runDescribe(cmd *cobra.Command, specPath string) error {
	a, err := assignment.Load(specPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, a.Name())
	fmt.Fprintf(out, "Marking branch: %s\n\n", a.MarkingBranch())
	fmt.Fprint(out, a.Structure.Describe())
	return nil
}
