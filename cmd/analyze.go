package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitescope/internal/analysis"
)

// newAnalyzeCmd creates the 'analyze' subcommand.
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Summarize every stored site with the LLM",
		Long: `Loads each stored site, drops privacy and terms pages, truncates the
remaining text to the token budget and asks the configured model to describe
the site. Results are written to every sink listed in analysis.sinks.`,
		RunE: runAnalyzeCommand,
	}
}

func runAnalyzeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return analyzeSites(cmd, appInstance)
}

func analyzeSites(cmd *cobra.Command, appInstance App) error {
	pipeline, err := appInstance.Pipeline()
	if err != nil {
		return err
	}
	report, err := pipeline.Run(cmd.Context())
	printAnalysisSummary(cmd.OutOrStdout(), report)
	if err != nil {
		return fmt.Errorf("run analysis: %w", err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d sites failed analysis", len(report.Failed))
	}
	return nil
}

func printAnalysisSummary(w io.Writer, report analysis.Report) {
	for _, res := range report.Results {
		_, _ = fmt.Fprintf(w, "%s\tanalyzed tokens=%d documents=%d\n", res.Site, res.InputTokens, res.DocumentCount)
	}
	for _, site := range report.Skipped {
		_, _ = fmt.Fprintf(w, "%s\tskipped: no usable text\n", site)
	}
	failed := make([]string, 0, len(report.Failed))
	for site := range report.Failed {
		failed = append(failed, site)
	}
	sort.Strings(failed)
	for _, site := range failed {
		_, _ = fmt.Fprintf(w, "%s\tfailed: %v\n", site, report.Failed[site])
	}
	_, _ = fmt.Fprintf(w, "run %s: %d analyzed, %d skipped, %d failed\n",
		report.RunID, len(report.Results), len(report.Skipped), len(report.Failed))
}
