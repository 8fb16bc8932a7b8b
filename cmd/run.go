package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Runs one discovery pass and upserts the companies found",
		Long: `Searches each configured platform footprint and, when the crawl strategy is
enabled, visits hiring pages looking for embedded job boards. Exits non-zero
when the run aborts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, board.StageDiscovery, App.RunDiscovery)
		},
	}
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes every known company board and upserts the jobs found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStage(cmd, board.StageScrape, App.RunScrape)
		},
	}
}

// runStage executes one stage and prints its summary as JSON on stdout.
func runStage(
	cmd *cobra.Command,
	stage board.Stage,
	run func(App, context.Context) (board.RunSummary, error),
) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := run(appInstance, cmd.Context())
	if err != nil {
		return fmt.Errorf("%s run: %w", stage, err)
	}
	appInstance.Logger().Info("run finished",
		zap.String("stage", string(stage)),
		zap.String("run_id", summary.RunID),
		zap.Int("written", summary.Written),
		zap.Int("failures", summary.Failures),
	)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
