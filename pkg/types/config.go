package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "toolsweep/0.1 (mailto:ops@example.org)"). Crossref etiquette
	// asks for a contact address in it.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CrawlConfig holds settings for the crawl stage.
type CrawlConfig struct {
	HTTPConfig `yaml:",inline"`

	// Workers is the number of concurrent search workers (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// StartDate and EndDate bound the crawl as ISO dates (YYYY-MM-DD),
	// both inclusive. Empty values mean full history up to today.
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`

	// IntervalDays is the maximum width of one search span in days (default 30).
	IntervalDays int `json:"interval_days" yaml:"interval_days"`

	// CachePath is the cache directory for crawl state and artifacts
	// (default "./doi-cache").
	CachePath string `json:"cache_path" yaml:"cache_path"`

	// MaxAttempts bounds retries of a span search on transient failures (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// ModelConfig holds shared settings for stages that call a text-generation API.
type ModelConfig struct {
	// Provider selects the backend: "openai", "anthropic", or "ollama".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gpt-4o").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for hosted providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// ServerURL overrides the Ollama server address.
	ServerURL string `json:"server_url,omitempty" yaml:"server_url,omitempty"`

	// Temperature is the sampling temperature (0 means the default, 0.25).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens caps the reply length (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	ModelConfig `yaml:",inline"`

	// Concurrency is the number of DOIs processed in parallel (default 2).
	// The bound exists to respect model rate limits, not CPU.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxAttempts bounds corrective re-prompts per DOI when model output
	// fails validation (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// CachePath is the cache directory shared with the crawl stage.
	CachePath string `json:"cache_path" yaml:"cache_path"`
}

// SweepConfig holds settings for the consolidation stage.
type SweepConfig struct {
	// CachePath is the cache directory holding extraction artifacts.
	CachePath string `json:"cache_path" yaml:"cache_path"`

	// Output is the destination file, "-" for stdout.
	Output string `json:"output" yaml:"output"`

	// Format selects the table format: "tsv", "json", or "yaml".
	Format string `json:"format" yaml:"format"`
}
