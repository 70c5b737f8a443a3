package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/crawler"
)

// newCrawlCmd creates the 'crawl' subcommand, which crawls every configured
// seed and persists one Document Set per site.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured seeds and store their page text",
		Long: `Crawls every seed depth-first, following only links on the seed's own
origin and no deeper than the max depth. Each seed runs concurrently; a
failing page or seed never stops the others.`,
		Example: `  sitescope crawl --seed https://example.com --seed https://example.org --max-depth 2`,
		RunE:    runCrawlCommand,
	}
	addCrawlFlags(cmd)
	return cmd
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("seed", nil, "seed URL to crawl (repeatable, replaces crawler.seeds)")
	cmd.Flags().Int("max-depth", 0, "maximum link depth from each seed (overrides crawler.max_depth)")
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	return crawlSeeds(cmd, appInstance)
}

func crawlSeeds(cmd *cobra.Command, appInstance App) error {
	logger := appInstance.Logger()
	seeds := appInstance.Config().SeedList()
	if len(seeds) == 0 {
		return errors.New("no seeds configured: set crawler.seeds or pass --seed")
	}

	logger.Info("Crawl started", zap.Int("seeds", len(seeds)))
	results := appInstance.Orchestrator().RunAll(cmd.Context(), seeds)

	failed := printCrawlSummary(cmd.OutOrStdout(), results)
	if err := cmd.Context().Err(); err != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d seeds failed", failed, len(results))
	}
	logger.Info("Crawl command finished.")
	return nil
}

func printCrawlSummary(w io.Writer, results []crawler.CrawlResult) int {
	failed := 0
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = "error: " + res.Err.Error()
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s\tdocuments=%d fetched=%d failed=%d skipped=%d\t%s\n",
			res.Seed.URL, len(res.Documents), res.Stats.Fetched, res.Stats.Failed, res.Stats.Skipped, status)
	}
	return failed
}
