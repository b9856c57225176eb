package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/crawl"
	"github.com/pdiddy/toolsweep/internal/interval"
	"github.com/pdiddy/toolsweep/internal/search"
	"github.com/pdiddy/toolsweep/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <query>",
	Short: "Discover article DOIs for a query across a date range",
	Long: `Crawl partitions the date range into spans of at most --interval days and
searches bioRxiv and medRxiv for each span concurrently. Discovered DOIs are
cached per span under --cache_path; spans already in the cache are never
searched again, so an interrupted crawl resumes where it stopped.

Failed spans are reported and left uncached for the next run to retry. The
command exits zero as long as the crawl itself could start; partial span
failures are not fatal.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Int("num_workers", 4, "concurrent span searches")
	crawlCmd.Flags().String("start_date", "", "range start, YYYY-MM-DD (default full history)")
	crawlCmd.Flags().String("end_date", "", "range end, YYYY-MM-DD (default today)")
	crawlCmd.Flags().Int("interval", 30, "maximum span width in days")
	crawlCmd.Flags().Int("max_attempts", 3, "search attempts per span before giving up")

	rootCmd.AddCommand(crawlCmd)
}

func crawlConfig(cmd *cobra.Command) types.CrawlConfig {
	cfg := types.CrawlConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   defaultTimeout,
			UserAgent: userAgent(),
		},
		Workers:      intSetting(cmd, "num_workers", "crawl.workers"),
		StartDate:    stringSetting(cmd, "start_date", "crawl.start_date"),
		EndDate:      stringSetting(cmd, "end_date", "crawl.end_date"),
		IntervalDays: intSetting(cmd, "interval", "crawl.interval_days"),
		CachePath:    cachePath(cmd),
		MaxAttempts:  intSetting(cmd, "max_attempts", "crawl.max_attempts"),
	}
	if cfg.StartDate == "" {
		cfg.StartDate = interval.EarliestStart
	}
	if cfg.EndDate == "" {
		cfg.EndDate = interval.Today().Format(interval.DateLayout)
	}
	return cfg
}

func runCrawl(cmd *cobra.Command, args []string) error {
	query := args[0]
	cfg := crawlConfig(cmd)

	spans, err := interval.Partition(cfg.StartDate, cfg.EndDate, cfg.IntervalDays)
	if err != nil {
		return err
	}

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	cleanup := setupLogging(cfg.CachePath)
	defer cleanup()

	run := types.RunRecord{
		ID:           uuid.NewString(),
		Kind:         types.RunCrawl,
		Query:        query,
		StartDate:    cfg.StartDate,
		EndDate:      cfg.EndDate,
		IntervalDays: cfg.IntervalDays,
		StartedAt:    time.Now().UTC(),
	}
	if err := store.RecordRun(cmd.Context(), run); err != nil {
		return err
	}

	fmt.Printf("crawling %q from %s to %s (%d spans, %d workers)\n",
		query, cfg.StartDate, cfg.EndDate, len(spans), cfg.Workers)

	pool := &crawl.Pool{
		Searcher: &search.RxivBackend{
			Client:    &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
		},
		Store:       store,
		Workers:     cfg.Workers,
		MaxAttempts: cfg.MaxAttempts,
	}

	summary, runErr := pool.Run(cmd.Context(), query, spans, os.Stdout)

	// The run record is closed out even when the context was cancelled,
	// so bookkeeping writes use a fresh context.
	if err := store.FinishRun(context.Background(), run.ID, summary.Searched+summary.Cached, summary.Failed); err != nil {
		slog.Warn("finishing run record", "error", err)
	}
	if runErr != nil {
		return runErr
	}

	result, err := crawl.Aggregate(cmd.Context(), store, query, spans)
	if err != nil {
		return err
	}
	fmt.Printf("%d unique DOIs cached for %q\n", len(result.DOIs), query)

	for _, sp := range summary.FailedSpans {
		fmt.Printf("retry next run: %s\n", sp)
	}
	return nil
}
