package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: crawl, then analyze.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl the configured seeds, then analyze every stored site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := crawlSeeds(cmd, appInstance); err != nil {
				// Sites that did persist are still worth analyzing.
				appInstance.Logger().Warn("Crawl finished with errors", zap.Error(err))
				if cmd.Context().Err() != nil {
					return err
				}
			}
			return analyzeSites(cmd, appInstance)
		},
	}
	addCrawlFlags(cmd)
	return cmd
}
