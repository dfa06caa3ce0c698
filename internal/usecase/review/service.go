package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
	"github.com/jackalby/pr-review-bot/internal/diff"
	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/publish"
	"github.com/jackalby/pr-review-bot/internal/usecase/trigger"
)

// publishGracePeriod bounds the publish and persist phase after the run
// deadline has expired.
const publishGracePeriod = 2 * time.Minute

// RunRequest identifies the pull request to review and how the run was
// triggered.
type RunRequest struct {
	Owner       string
	Repo        string
	Number      int
	CommentBody string
	FromComment bool
	// DryRun reviews without publishing or persisting.
	DryRun bool
}

// RunReport is the outcome of one run.
type RunReport struct {
	RunID    string
	Status   domain.RunStatus
	Skipped  bool
	SkipNote string

	FilesReviewed int
	TotalChunks   int
	FailedChunks  int
	FailedBatches int
	Posted        int
	Comments      []domain.ReviewComment
}

// Service drives a complete review run: trigger check, diff fetch, chunked
// review, comment mapping, publishing and persistence.
type Service struct {
	forge     Forge
	chunker   *Chunker
	orch      *Orchestrator
	publisher Publisher
	store     Store
	exclude   []string
	logger    *zap.Logger
	metrics   llmhttp.Metrics
	now       func() time.Time
}

// ServiceOptions wires a Service. Store may be nil to disable persistence.
type ServiceOptions struct {
	Forge     Forge
	Chunker   *Chunker
	Orch      *Orchestrator
	Publisher Publisher
	Store     Store
	Exclude   []string
	Logger    *zap.Logger
	// Metrics, when set, is snapshotted into the final run log. It should
	// be the same collector the completion client records into.
	Metrics llmhttp.Metrics
	// Now is injectable for tests. Nil uses time.Now.
	Now func() time.Time
}

// NewService assembles the run pipeline.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		forge:     opts.Forge,
		chunker:   opts.Chunker,
		orch:      opts.Orch,
		publisher: opts.Publisher,
		store:     opts.Store,
		exclude:   opts.Exclude,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Run executes one review run. It returns an error only for failures that
// prevented any review work: bad credentials, an unreachable PR, or a run
// where every chunk failed. Partial failures degrade the run but still
// deliver what succeeded.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	start := s.now()
	report := RunReport{RunID: newRunID(start, req.Owner+"/"+req.Repo, req.Number)}
	log := s.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("repo", req.Owner+"/"+req.Repo),
		zap.Int("pr", req.Number),
	)

	pr, err := s.forge.PullRequest(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return report, fmt.Errorf("fetch pull request: %w", err)
	}

	decision := trigger.Check(trigger.CheckRequest{
		CommentBody:   req.CommentBody,
		FromComment:   req.FromComment,
		PRTitle:       pr.Title,
		PRDescription: pr.Description,
	})
	if !decision.Run {
		log.Info("run skipped", zap.String("reason", decision.Reason))
		report.Status = domain.RunSucceeded
		report.Skipped = true
		report.SkipNote = decision.Reason
		return report, nil
	}

	rawDiff, err := s.forge.Diff(ctx, req.Owner, req.Repo, req.Number)
	if err != nil {
		return report, fmt.Errorf("fetch diff: %w", err)
	}

	files, malformed := diff.Parse(rawDiff)
	for _, m := range malformed {
		log.Warn("malformed diff section dropped", zap.String("file", m.Path), zap.String("reason", m.Reason))
	}

	files = FilterExcluded(files, s.exclude)
	report.FilesReviewed = len(files)

	chunks := s.chunker.Chunk(files)
	report.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		log.Info("nothing to review after parsing and exclusion")
		report.Status = domain.RunSucceeded
		report.Skipped = true
		report.SkipNote = "no reviewable changes"
		return report, nil
	}

	log.Info("reviewing",
		zap.Int("files", len(files)),
		zap.Int("chunks", len(chunks)),
	)

	result := s.orch.Run(ctx, chunks, PromptContext{Title: pr.Title, Description: pr.Description})
	report.FailedChunks = len(result.Failures)

	status := DeriveStatus(len(chunks), len(result.Failures))
	if status == domain.RunFailed {
		report.Status = status
		return report, fmt.Errorf("all %d chunks failed, first failure: %s", len(chunks), result.Failures[0].Reason)
	}

	index := BuildAddressableIndex(files)
	comments, dropped := MapComments(result.Comments, index)
	report.Comments = comments
	for _, d := range dropped {
		log.Warn("comment dropped",
			zap.String("file", d.Comment.File),
			zap.Int("line", d.Comment.Line),
			zap.String("reason", d.Reason),
		)
	}

	summary := buildSummary(len(files), comments, result.Failures)

	if req.DryRun {
		log.Info("dry run, skipping publish",
			zap.Int("comments", len(comments)),
			zap.String("summary", summary),
		)
		report.Status = status
		return report, nil
	}

	// Comments already computed survive a run deadline that expired during
	// the review stage: publishing runs on its own grace period.
	pubCtx, cancelPub := context.WithTimeout(context.WithoutCancel(ctx), publishGracePeriod)
	defer cancelPub()

	pubReport := s.publisher.Publish(pubCtx, publish.Target{
		Owner:  req.Owner,
		Repo:   req.Repo,
		Number: req.Number,
	}, summary, comments)
	report.FailedBatches = pubReport.FailedBatches
	report.Posted = pubReport.Posted

	if pubReport.FailedBatches > 0 {
		if pubReport.FailedBatches == pubReport.TotalBatches {
			report.Status = domain.RunFailed
			return report, fmt.Errorf("publishing failed entirely: %w", pubReport.Errors[0])
		}
		status = domain.RunDegraded
	}
	report.Status = status

	s.persist(pubCtx, log, start, req, pr, report)

	fields := []zap.Field{
		zap.String("status", report.Status.String()),
		zap.Int("comments_posted", report.Posted),
		zap.Int("failed_chunks", report.FailedChunks),
		zap.Int("failed_batches", report.FailedBatches),
	}
	if s.metrics != nil {
		stats := s.metrics.Stats()
		fields = append(fields,
			zap.Int("api_requests", stats.TotalRequests),
			zap.Int("api_errors", stats.ErrorCount),
			zap.Int("tokens_in", stats.TotalTokensIn),
			zap.Int("tokens_out", stats.TotalTokensOut),
			zap.Duration("api_duration", stats.TotalDuration),
		)
	}
	log.Info("run finished", fields...)
	return report, nil
}

func (s *Service) persist(ctx context.Context, log *zap.Logger, start time.Time, req RunRequest, pr PullRequest, report RunReport) {
	if s.store == nil {
		return
	}
	err := s.store.SaveRun(ctx, RunRecord{
		RunID:         report.RunID,
		Timestamp:     start,
		Repository:    req.Owner + "/" + req.Repo,
		PRNumber:      req.Number,
		HeadSHA:       pr.HeadSHA,
		PromptVersion: PromptVersion,
		Status:        report.Status,
		TotalChunks:   report.TotalChunks,
		FailedChunks:  report.FailedChunks,
		FailedBatches: report.FailedBatches,
		Posted:        report.Posted,
		Comments:      report.Comments,
	})
	if err != nil {
		log.Warn("failed to save run history", zap.Error(err))
	}
}

// buildSummary renders the review body posted with the first batch.
func buildSummary(files int, comments []domain.ReviewComment, failures []ChunkFailure) string {
	var sb strings.Builder

	if len(comments) == 0 {
		fmt.Fprintf(&sb, "Automated review of %d file(s): no issues found.\n", files)
	} else {
		fmt.Fprintf(&sb, "Automated review of %d file(s): %d comment(s).\n", files, len(comments))
	}

	if len(failures) > 0 {
		fmt.Fprintf(&sb, "\n---\n⚠️ This review is incomplete: %d diff chunk(s) could not be reviewed.\n", len(failures))
	}

	return sb.String()
}

func newRunID(timestamp time.Time, repository string, number int) string {
	ts := timestamp.UTC().Format("20060102T150405Z")

	input := fmt.Sprintf("%s|%d|%d", repository, number, timestamp.UnixNano())
	hash := sha256.Sum256([]byte(input))

	return fmt.Sprintf("run-%s-%s", ts, hex.EncodeToString(hash[:3]))
}
