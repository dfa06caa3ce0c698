// Package publish delivers mapped review comments to the pull request in
// size-bounded review batches.
package publish

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// Reviewer is the outbound port that posts one review event.
type Reviewer interface {
	CreateReview(ctx context.Context, owner, repo string, number int, summary string, comments []domain.ReviewComment) error
}

// Config tunes batching and pacing.
type Config struct {
	// BatchSize caps comments per review event.
	BatchSize int
	// BatchDelay spaces consecutive review events to stay under secondary
	// rate limits.
	BatchDelay time.Duration
	// Sleep is injectable for tests. Nil uses a context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Publisher splits comments into batches and posts each as its own review.
type Publisher struct {
	reviewer Reviewer
	config   Config
	logger   *zap.Logger
}

// NewPublisher wires a publisher. Zero config fields fall back to defaults.
func NewPublisher(reviewer Reviewer, config Config, logger *zap.Logger) *Publisher {
	if config.BatchSize <= 0 {
		config.BatchSize = 30
	}
	if config.Sleep == nil {
		config.Sleep = sleepCtx
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{reviewer: reviewer, config: config, logger: logger}
}

// Report summarises a publish pass.
type Report struct {
	TotalBatches  int
	FailedBatches int
	Posted        int
	// Errors holds one entry per failed batch.
	Errors []error
}

// Target identifies the pull request to publish to.
type Target struct {
	Owner  string
	Repo   string
	Number int
}

// Publish posts the comments in batches. The first batch carries the run
// summary so the PR always shows it exactly once; later batches post with an
// empty body. A failed batch is recorded and publishing continues with the
// next batch. When there are no comments at all, a single summary-only
// review is posted.
func (p *Publisher) Publish(ctx context.Context, target Target, summary string, comments []domain.ReviewComment) Report {
	batches := splitBatches(comments, p.config.BatchSize)
	if len(batches) == 0 {
		batches = [][]domain.ReviewComment{nil}
	}

	report := Report{TotalBatches: len(batches)}

	for i, batch := range batches {
		if i > 0 && p.config.BatchDelay > 0 {
			if err := p.config.Sleep(ctx, p.config.BatchDelay); err != nil {
				// cancelled mid-pass: every remaining batch counts as failed
				for j := i; j < len(batches); j++ {
					report.FailedBatches++
					report.Errors = append(report.Errors, fmt.Errorf("batch %d: %w", j+1, err))
				}
				return report
			}
		}

		body := ""
		if i == 0 {
			body = summary
		}

		if err := p.reviewer.CreateReview(ctx, target.Owner, target.Repo, target.Number, body, batch); err != nil {
			p.logger.Warn("review batch failed",
				zap.Int("batch", i+1),
				zap.Int("comments", len(batch)),
				zap.Error(err),
			)
			report.FailedBatches++
			report.Errors = append(report.Errors, fmt.Errorf("batch %d: %w", i+1, err))
			continue
		}

		report.Posted += len(batch)
		p.logger.Debug("review batch posted",
			zap.Int("batch", i+1),
			zap.Int("comments", len(batch)),
		)
	}

	return report
}

func splitBatches(comments []domain.ReviewComment, size int) [][]domain.ReviewComment {
	var batches [][]domain.ReviewComment
	for len(comments) > 0 {
		n := min(size, len(comments))
		batches = append(batches, comments[:n])
		comments = comments[n:]
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
