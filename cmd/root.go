package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/config"
	"github.com/JakeFAU/jobboard-harvester/internal/logging"
	"github.com/JakeFAU/jobboard-harvester/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what subcommands need from the composition root.
// It is an interface so tests can inject a fake.
type App interface {
	Logger() *zap.Logger
	RunDiscovery(ctx context.Context) (board.RunSummary, error)
	RunScrape(ctx context.Context) (board.RunSummary, error)
	Migrate(ctx context.Context) error
	SetCredits(ctx context.Context, userID string, credits *int) error
	Run(ctx context.Context) error
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	app, err := server.Build(ctx, &cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile, envFile string
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Discovers companies on ATS job boards and harvests their openings.",
		Long: `harvester finds companies that host their careers page on a known applicant
tracking system, scrapes each company's board into a job catalog, and serves
that catalog plus a credit-gated application endpoint over HTTP.`,
		SilenceUsage: true,

		// Build the application once and hand it to the subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env HARVESTER_* overrides apply either way)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config; existing env vars win")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCreditsCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadEnvFile populates the process env from a dotenv file. A missing default file is fine.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
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
