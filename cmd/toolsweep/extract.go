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
	"github.com/spf13/viper"

	"github.com/pdiddy/toolsweep/internal/article"
	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/crawl"
	"github.com/pdiddy/toolsweep/internal/extract"
	"github.com/pdiddy/toolsweep/internal/interval"
	"github.com/pdiddy/toolsweep/internal/schema"
	"github.com/pdiddy/toolsweep/internal/secrets"
	"github.com/pdiddy/toolsweep/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [doi ...]",
	Short: "Extract schema-checked tool-usage analyses for DOIs",
	Long: `Extract resolves each DOI to its latest published version, fetches title,
authors and abstract, and asks a language model for a structured analysis of
the article's GATK and IGV usage. Replies that violate the output schema are
re-prompted with the violations listed; DOIs that exhaust their attempts get
a failure record instead of an artifact.

DOIs come from the command line, from the cached crawl of --query, or from
the most recent crawl when neither is given. Artifacts live under
--cache_path next to the crawl state; DOIs with an existing analysis are
skipped, so reruns only touch unfinished work.`,
	Args: cobra.ArbitraryArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("query", "", "aggregate DOIs from the cached crawl of this query")
	extractCmd.Flags().String("start_date", "", "crawled range start, YYYY-MM-DD (default full history)")
	extractCmd.Flags().String("end_date", "", "crawled range end, YYYY-MM-DD (default today)")
	extractCmd.Flags().Int("interval", 30, "span width the range was crawled with, in days")
	extractCmd.Flags().String("model_provider", "openai", "model backend: openai, anthropic, or ollama")
	extractCmd.Flags().String("model", "gpt-4o-mini", "model identifier")
	extractCmd.Flags().Int("concurrency", 2, "DOIs extracted in parallel")
	extractCmd.Flags().Int("max_attempts", 3, "model attempts per DOI before a failure record")

	rootCmd.AddCommand(extractCmd)
}

// modelAPIKey resolves the API key for a provider from loaded secrets,
// falling back to the conventional environment variable.
func modelAPIKey(provider string) string {
	switch provider {
	case "openai":
		return secrets.Lookup(loadedSecrets, "openai-api-key", "OPENAI_API_KEY")
	case "anthropic":
		return secrets.Lookup(loadedSecrets, "anthropic-api-key", "ANTHROPIC_API_KEY")
	}
	return ""
}

func extractionConfig(cmd *cobra.Command) types.ExtractionConfig {
	provider := stringSetting(cmd, "model_provider", "extraction.provider")
	return types.ExtractionConfig{
		ModelConfig: types.ModelConfig{
			Provider:    provider,
			Model:       stringSetting(cmd, "model", "extraction.model"),
			APIKey:      modelAPIKey(provider),
			ServerURL:   viper.GetString("extraction.server_url"),
			Temperature: viper.GetFloat64("extraction.temperature"),
			MaxTokens:   viper.GetInt("extraction.max_tokens"),
			MaxRetries:  viper.GetInt("extraction.max_retries"),
		},
		Concurrency: intSetting(cmd, "concurrency", "extraction.concurrency"),
		MaxAttempts: intSetting(cmd, "max_attempts", "extraction.max_attempts"),
		CachePath:   cachePath(cmd),
	}
}

// extractionDOIs decides what to extract: explicit DOIs win, then the
// cached crawl of --query, then the most recent crawl run on record.
func extractionDOIs(cmd *cobra.Command, args []string, store *cache.Store) ([]string, types.RunRecord, error) {
	run := types.RunRecord{
		ID:        uuid.NewString(),
		Kind:      types.RunExtract,
		StartedAt: time.Now().UTC(),
	}
	if len(args) > 0 {
		return args, run, nil
	}

	query, _ := cmd.Flags().GetString("query")
	start := stringSetting(cmd, "start_date", "crawl.start_date")
	end := stringSetting(cmd, "end_date", "crawl.end_date")
	days := intSetting(cmd, "interval", "crawl.interval_days")

	if query == "" {
		last, ok, err := store.LastRun(cmd.Context(), types.RunCrawl)
		if err != nil {
			return nil, run, err
		}
		if !ok {
			return nil, run, fmt.Errorf("no DOIs given, no --query, and no previous crawl to draw from")
		}
		query, start, end, days = last.Query, last.StartDate, last.EndDate, last.IntervalDays
		fmt.Printf("extracting results of last crawl: %q %s..%s\n", query, start, end)
	}
	if start == "" {
		start = interval.EarliestStart
	}
	if end == "" {
		end = interval.Today().Format(interval.DateLayout)
	}

	spans, err := interval.Partition(start, end, days)
	if err != nil {
		return nil, run, err
	}
	result, err := crawl.Aggregate(cmd.Context(), store, query, spans)
	if err != nil {
		return nil, run, err
	}
	if !result.Complete() {
		fmt.Printf("note: %d of %d spans were never crawled; their DOIs are absent\n",
			len(result.Missing), result.Spans)
	}

	run.Query, run.StartDate, run.EndDate, run.IntervalDays = query, start, end, days
	return result.DOIs, run, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := extractionConfig(cmd)

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	cleanup := setupLogging(cfg.CachePath)
	defer cleanup()

	dois, run, err := extractionDOIs(cmd, args, store)
	if err != nil {
		return err
	}
	if len(dois) == 0 {
		fmt.Println("no DOIs to extract")
		return nil
	}

	model, err := extract.NewModel(cfg.ModelConfig)
	if err != nil {
		return err
	}

	if err := store.RecordRun(cmd.Context(), run); err != nil {
		return err
	}

	engine := &extract.Engine{
		Fetcher: &article.Client{
			HTTP:      &http.Client{Timeout: defaultTimeout},
			UserAgent: userAgent(),
		},
		Model:        model,
		Contract:     schema.ToolUsage,
		Store:        store,
		MaxAttempts:  cfg.MaxAttempts,
		ModelRetries: cfg.MaxRetries,
		Concurrency:  cfg.Concurrency,
	}

	fmt.Printf("extracting %d DOIs with %s (%s)\n", len(dois), model.Name(), cfg.Provider)

	summary, runErr := engine.Run(cmd.Context(), dois, os.Stdout)

	if err := store.FinishRun(context.Background(), run.ID, summary.Succeeded+summary.Skipped, summary.Failed); err != nil {
		slog.Warn("finishing run record", "error", err)
	}
	return runErr
}
