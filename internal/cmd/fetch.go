package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/subcheck/internal/assignment"
	"github.com/harrison/subcheck/internal/config"
	"github.com/harrison/subcheck/internal/filelock"
	"github.com/harrison/subcheck/internal/specfetch"
)

// NewFetchCommand creates and returns the fetch subcommand
func NewFetchCommand() *cobra.Command {
	var output string
	var specBaseURL string

	cmd := &cobra.Command{
		Use:   "fetch <assignment-ref>",
		Short: "Download an assignment structure document",
		Long: `Download an assignment structure document from the specification server
and save it locally, so later checks can run offline with --spec.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], output, specBaseURL)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to save the document to (default <ref>.json)")
	cmd.Flags().StringVar(&specBaseURL, "spec-base-url", "", "override the specification server base URL")

	return cmd
}

func runFetch(cmd *cobra.Command, ref, output, specBaseURL string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfigFromDir(".")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("spec-base-url") {
		cfg.MergeWithFlags(&specBaseURL, nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := specfetch.NewClient(cfg.SpecBaseURL, cfg.FetchTimeout)
	data, err := client.Fetch(ctx, ref)
	if err != nil {
		return err
	}

	// Parse before saving so a broken document is rejected here, not at
	// check time.
	a, err := assignment.Parse(data, assignment.FormatJSON)
	if err != nil {
		return err
	}

	if output == "" {
		output = ref + ".json"
	}
	if err := filelock.LockAndWrite(output, data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", a.Name(), output)
	return nil
}
