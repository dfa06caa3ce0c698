package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jackalby/pr-review-bot/internal/adapter/cli"
	githubadapter "github.com/jackalby/pr-review-bot/internal/adapter/github"
	"github.com/jackalby/pr-review-bot/internal/adapter/llm"
	"github.com/jackalby/pr-review-bot/internal/adapter/llm/azure"
	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
	"github.com/jackalby/pr-review-bot/internal/adapter/observability"
	"github.com/jackalby/pr-review-bot/internal/adapter/store/sqlite"
	"github.com/jackalby/pr-review-bot/internal/config"
	"github.com/jackalby/pr-review-bot/internal/redaction"
	"github.com/jackalby/pr-review-bot/internal/usecase/publish"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return
		}
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: []string{".", configDir()},
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is harmless at exit

	service, store, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if cfg.Review.RunTimeout > 0 {
		var cancelRun context.CancelFunc
		ctx, cancelRun = context.WithTimeout(ctx, cfg.Review.RunTimeout)
		defer cancelRun()
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Runner: service,
		ResolveEvent: func() (githubadapter.Event, error) {
			if cfg.GitHub.EventPath == "" {
				return githubadapter.Event{}, fmt.Errorf("GITHUB_EVENT_PATH is not set")
			}
			return githubadapter.ParseEventFile(cfg.GitHub.EventPath)
		},
		Version: version,
	})
	return root.ExecuteContext(ctx)
}

func buildService(cfg config.Config, logger *zap.Logger) (*review.Service, review.Store, error) {
	ghOpts := []githubadapter.Option{}
	if cfg.GitHub.BaseURL != "" {
		ghOpts = append(ghOpts, githubadapter.WithBaseURL(cfg.GitHub.BaseURL))
	}
	gh, err := githubadapter.NewClient(cfg.GitHub.Token, ghOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build github client: %w", err)
	}

	retryConf := llmhttp.RetryConfig{
		MaxAttempts:    cfg.HTTP.MaxAttempts,
		InitialBackoff: cfg.HTTP.InitialBackoff,
		MaxBackoff:     cfg.HTTP.MaxBackoff,
		Multiplier:     2.0,
	}
	metrics := llmhttp.NewDefaultMetrics()
	azureClient := azure.NewClient(cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.Deployment, cfg.Azure.APIVersion,
		azure.WithTimeout(cfg.HTTP.Timeout),
		azure.WithRetryConfig(retryConf),
		azure.WithMaxTokens(cfg.Azure.MaxTokens),
		azure.WithLogger(llmhttp.NewZapLogger(logger)),
		azure.WithMetrics(metrics),
	)

	var store review.Store
	if cfg.Store.Path != "" {
		sqlStore, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open run store: %w", err)
		}
		store = sqlStore
	}

	orch := review.NewOrchestrator(azureClient, review.OrchestratorConfig{
		Workers:      int64(cfg.Review.Workers),
		ChunkTimeout: cfg.Review.ChunkTimeout,
		Oversized:    review.OversizedPolicy(cfg.Review.OversizedChunks),
		Redactor:     redaction.NewEngine(),
	}, logger)

	publisher := publish.NewPublisher(gh, publish.Config{
		BatchSize:  cfg.Publish.BatchSize,
		BatchDelay: cfg.Publish.BatchDelay,
	}, logger)

	service := review.NewService(review.ServiceOptions{
		Forge:     gh,
		Chunker:   review.NewChunker(cfg.Review.ChunkTokenBudget, llm.EstimateTokens),
		Orch:      orch,
		Publisher: publisher,
		Store:     store,
		Exclude:   review.ParseExcludePatterns(cfg.Review.Exclude),
		Logger:    logger,
		Metrics:   metrics,
	})
	return service, store, nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/prb"
	}
	return "."
}
