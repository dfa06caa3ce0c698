package review

import (
	"context"
	"time"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/publish"
)

// PullRequest is the metadata a review run needs about its target.
type PullRequest struct {
	Title       string
	Description string
	HeadSHA     string
}

// Forge is the outbound port to the code host.
type Forge interface {
	PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error)
	Diff(ctx context.Context, owner, repo string, number int) (string, error)
}

// Publisher is the outbound port that delivers mapped comments.
type Publisher interface {
	Publish(ctx context.Context, target publish.Target, summary string, comments []domain.ReviewComment) publish.Report
}

// RunRecord is the persisted summary of one finished run.
type RunRecord struct {
	RunID         string
	Timestamp     time.Time
	Repository    string
	PRNumber      int
	HeadSHA       string
	PromptVersion string
	Status        domain.RunStatus
	TotalChunks   int
	FailedChunks  int
	FailedBatches int
	Posted        int
	Comments      []domain.ReviewComment
}

// Store is the outbound port for run history. Persistence failures never
// fail a run.
type Store interface {
	SaveRun(ctx context.Context, run RunRecord) error
	Close() error
}
