package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/app"
	"github.com/JakeFAU/sitescope/internal/config"
	"github.com/JakeFAU/sitescope/internal/crawler"
	"github.com/JakeFAU/sitescope/internal/logging"
	"github.com/JakeFAU/sitescope/internal/storage/postgres"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// skipAppAnnotation marks commands that run without configuration or services.
const skipAppAnnotation = "sitescope/skip-app"

// App defines the application interface that commands use.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() crawler.DocumentStore
	Analyses() *postgres.AnalysisStore
	Orchestrator() *crawler.Orchestrator
	Pipeline() (*analysis.Pipeline, error)
}

// newApp is the application factory. It's a variable so tests can inject
// options such as an in-memory publisher.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sitescope",
		Short: "Crawl websites and summarize what each one is about.",
		Long: `sitescope crawls a list of seed websites, staying on each seed's origin
and within a bounded link depth, stores the extracted page text per site and
asks an LLM to describe every site from that text.`,
		SilenceUsage: true,

		// Loads configuration, applies command-line overrides and builds the
		// application before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsApp(cmd) {
				return nil
			}
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(logging.WithLogger(ctx, logger))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ./"+config.LocalConfigFile+" or "+config.XDGConfigFile()+")")

	cmd.AddCommand(
		newCrawlCmd(),
		newAnalyzeCmd(),
		newRunCmd(),
		newServeCmd(),
		newInitCmd(),
	)
	return cmd
}

func needsApp(cmd *cobra.Command) bool {
	if cmd.Name() == "help" || cmd.Name() == cobra.ShellCompRequestCmd {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipAppAnnotation] == "true" {
			return false
		}
	}
	return true
}

func loadConfig(explicit string) (config.Config, error) {
	path, err := config.FindConfigFile(explicit)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides copies explicitly set subcommand flags over cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if f := flags.Lookup("seed"); f != nil && f.Changed {
		seeds, err := flags.GetStringArray("seed")
		if err != nil {
			return fmt.Errorf("read --seed: %w", err)
		}
		cfg.Crawler.Seeds = seeds
	}
	if f := flags.Lookup("max-depth"); f != nil && f.Changed {
		depth, err := flags.GetInt("max-depth")
		if err != nil {
			return fmt.Errorf("read --max-depth: %w", err)
		}
		cfg.Crawler.MaxDepth = depth
	}
	if f := flags.Lookup("port"); f != nil && f.Changed {
		port, err := flags.GetInt("port")
		if err != nil {
			return fmt.Errorf("read --port: %w", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context so crawls and the API server stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
