package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitescope/internal/api"
)

// newServeCmd creates the 'serve' subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API over stored sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var analyses api.AnalysisReader
			if store := appInstance.Analyses(); store != nil {
				analyses = store
			}
			server := api.NewServer(appInstance.Store(), analyses, appInstance.Logger())
			addr := fmt.Sprintf(":%d", appInstance.Config().Server.Port)
			return server.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	return cmd
}
