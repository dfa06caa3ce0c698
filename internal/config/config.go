// Package config defines the runtime configuration and its validation
// rules. Values come from a config file, PRB_-prefixed environment
// variables, and the legacy environment names used by the GitHub Action
// wrapper.
package config

import (
	"fmt"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Azure   AzureConfig   `mapstructure:"azure"`
	Review  ReviewConfig  `mapstructure:"review"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Publish PublishConfig `mapstructure:"publish"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GitHubConfig holds API credentials and the event source.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	// EventPath points at the Actions event payload JSON.
	EventPath string `mapstructure:"event_path"`
	// BaseURL overrides the API root for GitHub Enterprise.
	BaseURL string `mapstructure:"base_url"`
}

// AzureConfig identifies the Azure OpenAI deployment to review with.
type AzureConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Deployment string `mapstructure:"deployment"`
	APIVersion string `mapstructure:"api_version"`
	MaxTokens  int    `mapstructure:"max_tokens"`
}

// ReviewConfig tunes chunking and the concurrent review pass.
type ReviewConfig struct {
	// Exclude is a comma-separated glob list of paths to skip.
	Exclude string `mapstructure:"exclude"`
	// ChunkTokenBudget caps the estimated tokens per chunk.
	ChunkTokenBudget int `mapstructure:"chunk_token_budget"`
	// Workers bounds concurrent chunk reviews.
	Workers int `mapstructure:"workers"`
	// ChunkTimeout bounds one chunk review including retries.
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
	// RunTimeout bounds the whole run.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	// OversizedChunks is "send" or "reject".
	OversizedChunks string `mapstructure:"oversized_chunks"`
}

// HTTPConfig tunes the provider transport.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// PublishConfig tunes comment delivery.
type PublishConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
}

// StoreConfig controls run history persistence.
type StoreConfig struct {
	// Path is the SQLite database location. Empty disables persistence.
	Path string `mapstructure:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

// Validate checks the fields a run cannot start without. Tuning fields fall
// back to defaults instead of failing.
func (c Config) Validate() error {
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token is required")
	}
	if c.Azure.Endpoint == "" {
		return fmt.Errorf("azure endpoint is required")
	}
	if c.Azure.APIKey == "" {
		return fmt.Errorf("azure api key is required")
	}
	if c.Azure.Deployment == "" {
		return fmt.Errorf("azure deployment is required")
	}
	if p := c.Review.OversizedChunks; p != "" && p != "send" && p != "reject" {
		return fmt.Errorf("review.oversized_chunks must be %q or %q, got %q", "send", "reject", p)
	}
	if f := c.Logging.Format; f != "" && f != "json" && f != "console" {
		return fmt.Errorf("logging.format must be %q or %q, got %q", "json", "console", f)
	}
	return nil
}
