// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noticewala/notice-engine/internal/pipeline"
	"github.com/noticewala/notice-engine/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run an ingestion cycle over registered sources",
	Long: `Crawl fetches due sources, extracts structured announcements, deduplicates
them into canonical records, scores their priority, and emits match events
for subscriptions.

By default every source whose crawl interval has elapsed is processed. Use
--source to crawl one source on demand, or --category to restrict the cycle.`,
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	sourceID, _ := cmd.Flags().GetString("source")
	category, _ := cmd.Flags().GetString("category")
	force, _ := cmd.Flags().GetBool("force")

	if sourceID != "" && category != "" {
		return fmt.Errorf("--source and --category are mutually exclusive")
	}

	cfg := pipelineConfig()
	logger := newLogger(cfg.Logging)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	p, cleanup, err := newPipeline(cfg, st, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	summary, err := runSelection(ctx, p, sourceID, category, force)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "sources:  %d attempted, %d succeeded, %d failed, %d skipped\n",
		summary.SourcesAttempted, summary.Succeeded, summary.Failed, summary.Skipped)
	fmt.Fprintf(os.Stdout, "notices:  %d inserted, %d merged, %d discarded\n",
		summary.AnnouncementsInserted, summary.Merged, summary.Discarded)
	fmt.Fprintf(os.Stdout, "matches:  %d events in %s\n", summary.MatchEvents, summary.Duration.Round(summaryRounding))

	if summary.HasFailures() {
		return fmt.Errorf("%d source(s) failed", summary.Failed)
	}
	return nil
}

// summaryRounding keeps the printed cycle duration readable.
const summaryRounding = 10 * time.Millisecond

func runSelection(ctx context.Context, p *pipeline.Pipeline, sourceID, category string, force bool) (types.CrawlSummary, error) {
	switch {
	case sourceID != "":
		return p.RunSingle(ctx, sourceID)
	case category != "":
		return p.RunByCategory(ctx, category, force)
	default:
		return p.RunAll(ctx, force)
	}
}

func init() {
	crawlCmd.Flags().String("source", "", "crawl a single source by ID (bypasses the interval check)")
	crawlCmd.Flags().String("category", "", "crawl only sources registered under this category")
	crawlCmd.Flags().Bool("force", false, "crawl even when the interval has not elapsed")

	rootCmd.AddCommand(crawlCmd)
}
