package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harrison/subcheck/internal/config"
	"github.com/harrison/subcheck/internal/history"
)

// NewHistoryCommand creates the 'subcheck history' parent command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Check-run history commands",
		Long: `Commands for viewing and managing the local record of past check runs.

Every 'subcheck check' invocation is recorded (unless disabled in the
configuration) with its outcome and report.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

// openHistoryStore opens the configured history database, reporting a
// friendly error when no runs were ever recorded.
func openHistoryStore() (*history.Store, error) {
	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.History.DBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no check runs recorded yet")
	}
	return history.NewStore(cfg.History.DBPath)
}

func newHistoryListCommand() *cobra.Command {
	var assignmentFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded check runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runs, err := store.ListRuns(ctx, assignmentFilter, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No check runs recorded.")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "%4d  %s  %-7s  %s  %s\n",
					run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
					run.Outcome, run.Submission, run.Assignment)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&assignmentFilter, "assignment", "a", "", "only list runs for this assignment name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 = no limit)")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the saved report of a recorded check run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			run, err := store.GetRun(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %d: %s\n", run.ID, run.Assignment)
			fmt.Fprintf(out, "Submission: %s\n", run.Submission)
			fmt.Fprintf(out, "Checked:    %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Outcome:    %s (%d fatal, %d warnings, %d notes)\n\n",
				run.Outcome, run.FatalCount, run.WarnCount, run.InfoCount)
			fmt.Fprintln(out, run.Report)
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to clear history without --force")
			}

			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cleared, err := store.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d check runs.\n", cleared)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "confirm deletion of all recorded runs")

	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old check runs, keeping the newest per assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep <= 0 {
				return fmt.Errorf("--keep must be positive")
			}

			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pruned, err := store.Prune(ctx, keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d check runs.\n", pruned)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVarP(&keep, "keep", "k", 20, "number of runs to keep per assignment")

	return cmd
}
