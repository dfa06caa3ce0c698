package review

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// CompletionClient is the outbound port to the model provider. Complete
// sends one system/user prompt pair and returns the raw model output.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OversizedPolicy decides what happens to a chunk whose single hunk exceeds
// the token budget.
type OversizedPolicy string

const (
	// OversizedSend submits the chunk anyway and lets the provider enforce
	// its own limits.
	OversizedSend OversizedPolicy = "send"
	// OversizedReject fails the chunk locally without an API call.
	OversizedReject OversizedPolicy = "reject"
)

// ChunkFailure records one chunk that produced no comments because of an
// error rather than a clean review.
type ChunkFailure struct {
	ChunkID string
	File    string
	Reason  string
}

// Redactor scrubs secrets out of diff text before it leaves the process.
type Redactor interface {
	Redact(input string) string
}

// OrchestratorConfig tunes the concurrent review pass.
type OrchestratorConfig struct {
	// Workers bounds how many chunks are in flight at once.
	Workers int64
	// ChunkTimeout bounds one chunk's review, including retries.
	ChunkTimeout time.Duration
	// Oversized selects the policy for over-budget chunks.
	Oversized OversizedPolicy
	// Redactor, when set, scrubs chunk text before prompting.
	Redactor Redactor
}

// Orchestrator fans chunks out to the model under a concurrency bound and
// collects the results in chunk order.
type Orchestrator struct {
	client CompletionClient
	config OrchestratorConfig
	logger *zap.Logger
}

// NewOrchestrator wires an orchestrator. Zero config fields fall back to
// safe defaults.
func NewOrchestrator(client CompletionClient, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.ChunkTimeout <= 0 {
		config.ChunkTimeout = 2 * time.Minute
	}
	if config.Oversized == "" {
		config.Oversized = OversizedSend
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{client: client, config: config, logger: logger}
}

// Result aggregates one review pass over all chunks.
type Result struct {
	Comments []domain.ReviewComment
	Skipped  []SkippedRecord
	Failures []ChunkFailure
}

type chunkOutcome struct {
	comments []domain.ReviewComment
	skipped  []SkippedRecord
	failure  *ChunkFailure
}

// Run reviews every chunk. A chunk failure never aborts its siblings: each
// failed chunk is recorded and the rest of the run continues. Only context
// cancellation stops the pass early, and even then the chunks already in
// flight report their outcome.
func (o *Orchestrator) Run(ctx context.Context, chunks []domain.Chunk, pr PromptContext) Result {
	sem := semaphore.NewWeighted(o.config.Workers)
	outcomes := make([]chunkOutcome, len(chunks))
	done := make(chan int, len(chunks))
	launched := 0

	for i, chunk := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = chunkOutcome{failure: &ChunkFailure{
				ChunkID: chunk.ID,
				File:    chunk.File,
				Reason:  fmt.Sprintf("run cancelled before review: %v", err),
			}}
			continue
		}

		launched++
		go func(i int, chunk domain.Chunk) {
			defer sem.Release(1)
			outcomes[i] = o.reviewChunk(ctx, chunk, pr)
			done <- i
		}(i, chunk)
	}

	for range launched {
		<-done
	}

	return collect(outcomes)
}

// PromptContext carries the PR metadata every chunk prompt shares.
type PromptContext struct {
	Title       string
	Description string
}

func (o *Orchestrator) reviewChunk(ctx context.Context, chunk domain.Chunk, pr PromptContext) chunkOutcome {
	log := o.logger.With(
		zap.String("chunk_id", chunk.ID),
		zap.String("file", chunk.File),
		zap.Int("estimated_tokens", chunk.EstimatedTokens),
	)

	if chunk.Oversized && o.config.Oversized == OversizedReject {
		log.Warn("chunk exceeds token budget, rejected by policy")
		return chunkOutcome{failure: &ChunkFailure{
			ChunkID: chunk.ID,
			File:    chunk.File,
			Reason:  "chunk exceeds token budget",
		}}
	}

	chunkCtx, cancel := context.WithTimeout(ctx, o.config.ChunkTimeout)
	defer cancel()

	diffText := chunk.DiffText()
	if o.config.Redactor != nil {
		diffText = o.config.Redactor.Redact(diffText)
	}

	prompt := BuildPrompt(PromptInput{
		FilePath: chunk.File,
		DiffText: diffText,
		PRTitle:  pr.Title,
		PRBody:   pr.Description,
	})

	raw, err := o.client.Complete(chunkCtx, SystemPrompt, prompt)
	if err != nil {
		log.Warn("chunk review failed", zap.Error(err))
		return chunkOutcome{failure: &ChunkFailure{
			ChunkID: chunk.ID,
			File:    chunk.File,
			Reason:  err.Error(),
		}}
	}

	comments, skipped, err := ParseResponse(raw, chunk)
	if err != nil {
		log.Warn("chunk response unparseable", zap.Error(err))
		return chunkOutcome{failure: &ChunkFailure{
			ChunkID: chunk.ID,
			File:    chunk.File,
			Reason:  err.Error(),
		}}
	}

	log.Debug("chunk reviewed",
		zap.Int("comments", len(comments)),
		zap.Int("skipped_records", len(skipped)),
	)
	return chunkOutcome{comments: comments, skipped: skipped}
}

// collect flattens per-chunk outcomes in chunk order, which keeps the run's
// output deterministic for a given set of model responses.
func collect(outcomes []chunkOutcome) Result {
	var result Result
	for _, out := range outcomes {
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
			continue
		}
		result.Comments = append(result.Comments, out.comments...)
		result.Skipped = append(result.Skipped, out.skipped...)
	}
	return result
}

// DeriveStatus classifies a finished run. A run with no failed chunks
// succeeded; a run where every chunk failed produced nothing and failed;
// anything in between is degraded but still worth publishing.
func DeriveStatus(totalChunks, failedChunks int) domain.RunStatus {
	switch {
	case failedChunks == 0:
		return domain.RunSucceeded
	case failedChunks >= totalChunks && totalChunks > 0:
		return domain.RunFailed
	default:
		return domain.RunDegraded
	}
}
