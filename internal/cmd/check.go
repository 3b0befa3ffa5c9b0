package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/subcheck/internal/assignment"
	"github.com/harrison/subcheck/internal/config"
	"github.com/harrison/subcheck/internal/filelock"
	"github.com/harrison/subcheck/internal/gitcheck"
	"github.com/harrison/subcheck/internal/history"
	"github.com/harrison/subcheck/internal/report"
	"github.com/harrison/subcheck/internal/scratch"
	"github.com/harrison/subcheck/internal/specfetch"
)

// checkFlags holds the flag values of the check subcommand.
type checkFlags struct {
	specPath      string
	assignmentRef string
	cloneURL      string
	candidate     string
	specBaseURL   string
	outputPath    string
	outputHTML    bool
	keepScratch   bool
	noHistory     bool
	colorMode     string
	ignore        []string
	fallbacks     []string
}

// NewCheckCommand creates and returns the check subcommand
func NewCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check [submission]",
		Short: "Check a submission against an assignment structure",
		Long: `Check that a submission archive or directory follows the structure an
assignment expects.

The assignment structure comes from either a local document (--spec) or
the specification server (--assignment). The submission is a local
archive or directory, or a repository to clone (--github).

The submission itself is never modified: checking happens on a copy in
a temporary workspace.

Exit code: 0 when the submission has no fatal problems, 1 otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			submission := ""
			if len(args) == 1 {
				submission = args[0]
			}
			return runCheck(cmd, submission, flags)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&flags.specPath, "spec", "s", "", "path to a local structure document (JSON or YAML)")
	cmd.Flags().StringVarP(&flags.assignmentRef, "assignment", "a", "", "assignment reference to fetch from the specification server")
	cmd.Flags().StringVar(&flags.cloneURL, "github", "", "clone this repository URL and check it as the submission")
	cmd.Flags().StringVar(&flags.candidate, "candidate", "", "expected candidate number for the submission name check")
	cmd.Flags().StringVar(&flags.specBaseURL, "spec-base-url", "", "override the specification server base URL")
	cmd.Flags().StringVarP(&flags.outputPath, "output", "o", "", "write the report to this file as Markdown")
	cmd.Flags().BoolVar(&flags.outputHTML, "html", false, "write the report file as HTML instead of Markdown")
	cmd.Flags().BoolVar(&flags.keepScratch, "keep-scratch", false, "keep the temporary workspace for inspection")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "do not record this run in the history database")
	cmd.Flags().StringVar(&flags.colorMode, "color", "", "colour the report output: auto, always or never")
	cmd.Flags().StringArrayVar(&flags.ignore, "ignore", nil, "extra glob for unexpected files to ignore (repeatable)")
	cmd.Flags().StringArrayVar(&flags.fallbacks, "branch-fallback", nil, "fallback branch to try when the marking branch is absent (repeatable, overrides config)")

	return cmd
}

func runCheck(cmd *cobra.Command, submission string, flags *checkFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return err
	}
	mergeCheckFlags(cmd, cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := loadAssignment(ctx, cfg, flags)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Checking against: %s\n\n", a.Name())

	// A cloned repository stands in for a local submission.
	if flags.cloneURL != "" {
		if submission != "" {
			return fmt.Errorf("provide either a submission path or --github, not both")
		}
		cloneWS, err := scratch.New("subcheck-clone")
		if err != nil {
			return err
		}
		defer cloneWS.Remove()

		submission, err = gitcheck.NewInspector().Clone(ctx, flags.cloneURL, cloneWS.Path)
		if err != nil {
			return err
		}
	}
	if submission == "" {
		return fmt.Errorf("no submission given: pass a path or --github URL")
	}

	// An archive submission should be named with the candidate number.
	if info, err := os.Stat(submission); err == nil && !info.IsDir() {
		if notice := assignment.CheckSubmissionName(submission, flags.candidate); notice != nil {
			report.Notice{Title: notice.Title, Message: notice.Detail}.Display(errOut)
		}
	}

	fallbacks := cfg.FallbackBranches
	if len(flags.fallbacks) > 0 {
		fallbacks = flags.fallbacks
	}
	result, err := a.CheckSubmission(ctx, submission, assignment.CheckOptions{
		FallbackBranches: fallbacks,
		IgnorePatterns:   append(cfg.IgnorePatterns, flags.ignore...),
		KeepScratch:      cfg.KeepScratch,
	})
	if err != nil {
		return err
	}

	if len(result.TopLevelFiles) > 0 {
		report.Notice{
			Title:   "stray files next to the submission directory",
			Message: strings.Join(result.TopLevelFiles, ", "),
		}.Display(errOut)
	}

	relativeTo := filepath.Dir(result.SubmissionRoot)
	report.Write(out, result.Log, relativeTo, report.UseColor(cfg.Color, out))

	if flags.outputPath != "" {
		if err := saveReport(flags.outputPath, flags.outputHTML, result, relativeTo); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport saved to %s\n", flags.outputPath)
	}

	if cfg.History.Enabled && !flags.noHistory {
		if err := recordRun(ctx, cfg, a, submission, result, relativeTo); err != nil {
			// History is bookkeeping; a failure must not mask the check.
			fmt.Fprintf(errOut, "warning: failed to record check run: %v\n", err)
		}
	}

	if result.ScratchPath != "" {
		fmt.Fprintf(out, "\nWorkspace kept at %s\n", result.ScratchPath)
	}

	if result.Log.HasFatal() {
		return fmt.Errorf("submission has fatal problems")
	}
	return nil
}

// mergeCheckFlags applies explicitly set flags over the loaded config.
func mergeCheckFlags(cmd *cobra.Command, cfg *config.Config, flags *checkFlags) {
	var specBase *string
	var keepScratch *bool
	var colorMode *string

	if cmd.Flags().Changed("spec-base-url") {
		specBase = &flags.specBaseURL
	}
	if cmd.Flags().Changed("keep-scratch") {
		keepScratch = &flags.keepScratch
	}
	if cmd.Flags().Changed("color") {
		colorMode = &flags.colorMode
	}
	cfg.MergeWithFlags(specBase, keepScratch, colorMode)
}

// loadAssignment builds the Assignment from a local document or the
// specification server.
func loadAssignment(ctx context.Context, cfg *config.Config, flags *checkFlags) (*assignment.Assignment, error) {
	switch {
	case flags.specPath != "" && flags.assignmentRef != "":
		return nil, fmt.Errorf("provide either --spec or --assignment, not both")
	case flags.specPath != "":
		return assignment.Load(flags.specPath)
	case flags.assignmentRef != "":
		client := specfetch.NewClient(cfg.SpecBaseURL, cfg.FetchTimeout)
		data, err := client.Fetch(ctx, flags.assignmentRef)
		if err != nil {
			return nil, err
		}
		return assignment.Parse(data, assignment.FormatJSON)
	default:
		return nil, fmt.Errorf("no assignment given: pass --spec or --assignment")
	}
}

func saveReport(path string, asHTML bool, result *assignment.Result, relativeTo string) error {
	var content string
	if asHTML {
		html, err := report.HTML(result.Log, relativeTo)
		if err != nil {
			return err
		}
		content = html
	} else {
		content = report.Markdown(result.Log, relativeTo)
	}
	return filelock.LockAndWrite(path, []byte(content))
}

func recordRun(ctx context.Context, cfg *config.Config, a *assignment.Assignment, submission string, result *assignment.Result, relativeTo string) error {
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.RecordRun(ctx, history.Run{
		Assignment: a.Name(),
		Submission: filepath.Base(submission),
		Outcome:    result.Outcome(),
		FatalCount: len(result.Log.Fatal()),
		WarnCount:  len(result.Log.Warnings()),
		InfoCount:  len(result.Log.Information()),
		Report:     report.Markdown(result.Log, relativeTo),
	})
	if err != nil {
		return err
	}
	_, err = store.Prune(ctx, cfg.History.KeepRuns)
	return err
}
