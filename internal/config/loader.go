package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoaderOptions describes how configuration should be discovered.
type LoaderOptions struct {
	ConfigPaths []string
	FileName    string
	EnvPrefix   string
}

// Load returns the merged configuration from defaults, an optional config
// file, PRB_-prefixed environment variables, and the legacy environment
// names the Action wrapper sets.
func Load(opts LoaderOptions) (Config, error) {
	v := viper.New()

	name := opts.FileName
	if name == "" {
		name = "prb"
	}

	configFile := locateConfigFile(name, opts.ConfigPaths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = "PRB"
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)

	bindLegacyEnv(v, prefix)
	setDefaults(v)

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("azure.api_version", "2024-02-15-preview")
	v.SetDefault("azure.max_tokens", 4000)

	v.SetDefault("review.chunk_token_budget", 3000)
	v.SetDefault("review.workers", 4)
	v.SetDefault("review.chunk_timeout", 2*time.Minute)
	v.SetDefault("review.run_timeout", 10*time.Minute)
	v.SetDefault("review.oversized_chunks", "send")

	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.initial_backoff", 2*time.Second)
	v.SetDefault("http.max_backoff", 32*time.Second)

	v.SetDefault("publish.batch_size", 30)
	v.SetDefault("publish.batch_delay", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// bindLegacyEnv keeps the environment names the GitHub Action has always
// used working alongside the prefixed form. The prefixed name wins when
// both are set.
func bindLegacyEnv(v *viper.Viper, prefix string) {
	legacy := map[string]string{
		"github.token":      "GITHUB_TOKEN",
		"github.event_path": "GITHUB_EVENT_PATH",
		"azure.endpoint":    "AZURE_OPENAI_ENDPOINT",
		"azure.api_key":     "AZURE_OPENAI_KEY",
		"azure.deployment":  "AZURE_OPENAI_DEPLOYMENT",
		"azure.api_version": "AZURE_OPENAI_API_VERSION",
		"review.exclude":    "INPUT_EXCLUDE",
	}
	for key, env := range legacy {
		prefixed := prefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		v.BindEnv(key, prefixed, env) //nolint:errcheck // only errors on empty input
	}
}

func locateConfigFile(name string, paths []string) string {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, dir := range paths {
		for _, ext := range []string{"yaml", "yml", "json", "toml"} {
			candidate := filepath.Join(dir, name+"."+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}
