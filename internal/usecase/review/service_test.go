package review_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/publish"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

const sampleDiff = `diff --git a/app.py b/app.py
index 1111111..2222222 100644
--- a/app.py
+++ b/app.py
@@ -10,2 +10,3 @@ def handler():
 def lookup(user_id):
-    return db.query("SELECT * FROM users WHERE id = " + user_id)
+    query = "SELECT * FROM users WHERE id = " + user_id
+    return db.query(query)
`

type fakeForge struct {
	pr      review.PullRequest
	prErr   error
	diff    string
	diffErr error
}

func (f *fakeForge) PullRequest(context.Context, string, string, int) (review.PullRequest, error) {
	return f.pr, f.prErr
}

func (f *fakeForge) Diff(context.Context, string, string, int) (string, error) {
	return f.diff, f.diffErr
}

type fakePublisher struct {
	target   publish.Target
	summary  string
	comments []domain.ReviewComment
	report   publish.Report
	calls    int
	ctxErr   error
}

func (f *fakePublisher) Publish(ctx context.Context, target publish.Target, summary string, comments []domain.ReviewComment) publish.Report {
	f.calls++
	f.ctxErr = ctx.Err()
	f.target = target
	f.summary = summary
	f.comments = comments
	if f.report.TotalBatches == 0 {
		f.report = publish.Report{TotalBatches: 1, Posted: len(comments)}
	}
	return f.report
}

type fakeStore struct {
	saved []review.RunRecord
	err   error
}

func (f *fakeStore) SaveRun(_ context.Context, run review.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, run)
	return nil
}

func (f *fakeStore) Close() error { return nil }

type scriptedClient struct {
	response string
	err      error
}

func (s *scriptedClient) Complete(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func newService(t *testing.T, forge *fakeForge, client review.CompletionClient, pub *fakePublisher, store review.Store) *review.Service {
	t.Helper()

	return review.NewService(review.ServiceOptions{
		Forge:     forge,
		Chunker:   review.NewChunker(10000, func(s string) int { return len(s) / 4 }),
		Orch:      review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 2}, nil),
		Publisher: pub,
		Store:     store,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
}

func runRequest() review.RunRequest {
	return review.RunRequest{Owner: "octo", Repo: "demo", Number: 42}
}

func TestRunEndToEnd(t *testing.T) {
	forge := &fakeForge{
		pr:   review.PullRequest{Title: "Refactor lookup", Description: "Cleanup.", HeadSHA: "abc123"},
		diff: sampleDiff,
	}
	client := &scriptedClient{response: `{"reviews": [
		{"lineNumber": 11, "severity": "error", "comment": "SQL built from user input."},
		{"lineNumber": 999, "severity": "info", "comment": "Points outside the diff."}
	]}`}
	pub := &fakePublisher{}
	store := &fakeStore{}

	report, err := newService(t, forge, client, pub, store).Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, report.Status)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.TotalChunks)

	// the out-of-diff comment is dropped before publishing
	require.Len(t, pub.comments, 1)
	assert.Equal(t, 11, pub.comments[0].Line)
	assert.Equal(t, publish.Target{Owner: "octo", Repo: "demo", Number: 42}, pub.target)
	assert.Contains(t, pub.summary, "1 comment(s)")

	require.Len(t, store.saved, 1)
	assert.Equal(t, "abc123", store.saved[0].HeadSHA)
	assert.Equal(t, domain.RunSucceeded, store.saved[0].Status)
	assert.Contains(t, store.saved[0].RunID, "run-")
}

func TestRunSkippedWithoutCommand(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	pub := &fakePublisher{}

	req := runRequest()
	req.FromComment = true
	req.CommentBody = "looks good to me"

	report, err := newService(t, forge, &scriptedClient{}, pub, nil).Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Equal(t, 0, pub.calls)
}

func TestRunSkipTrigger(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "WIP [skip code-review]"}, diff: sampleDiff}
	pub := &fakePublisher{}

	report, err := newService(t, forge, &scriptedClient{}, pub, nil).Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Contains(t, report.SkipNote, "skip trigger")
	assert.Equal(t, 0, pub.calls)
}

func TestRunNothingToReview(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: "diff --git a/logo.png b/logo.png\nBinary files differ\n"}
	pub := &fakePublisher{}

	report, err := newService(t, forge, &scriptedClient{}, pub, nil).Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Equal(t, "no reviewable changes", report.SkipNote)
	assert.Equal(t, 0, pub.calls)
}

func TestRunAllChunksFailedIsFatal(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{err: fmt.Errorf("provider down")}
	pub := &fakePublisher{}

	report, err := newService(t, forge, client, pub, nil).Run(context.Background(), runRequest())

	require.ErrorContains(t, err, "provider down")
	assert.Equal(t, domain.RunFailed, report.Status)
	assert.Equal(t, 0, pub.calls)
}

func TestRunDegradedByFailedBatches(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{response: `{"reviews": [{"lineNumber": 11, "severity": "info", "comment": "x"}]}`}
	pub := &fakePublisher{report: publish.Report{TotalBatches: 2, FailedBatches: 1, Posted: 1, Errors: []error{fmt.Errorf("boom")}}}

	report, err := newService(t, forge, client, pub, nil).Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.RunDegraded, report.Status)
	assert.Equal(t, 1, report.FailedBatches)
}

func TestRunPublishingFailedEntirely(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{response: `{"reviews": [{"lineNumber": 11, "severity": "info", "comment": "x"}]}`}
	pub := &fakePublisher{report: publish.Report{TotalBatches: 1, FailedBatches: 1, Errors: []error{fmt.Errorf("boom")}}}

	report, err := newService(t, forge, client, pub, nil).Run(context.Background(), runRequest())

	require.ErrorContains(t, err, "publishing failed entirely")
	assert.Equal(t, domain.RunFailed, report.Status)
}

func TestRunDryRunSkipsPublishAndStore(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{response: `{"reviews": [{"lineNumber": 11, "severity": "info", "comment": "x"}]}`}
	pub := &fakePublisher{}
	store := &fakeStore{}

	req := runRequest()
	req.DryRun = true

	report, err := newService(t, forge, client, pub, store).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, report.Status)
	assert.Equal(t, 0, pub.calls)
	assert.Empty(t, store.saved)
	require.Len(t, report.Comments, 1)
}

func TestRunStoreFailureDoesNotFailRun(t *testing.T) {
	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{response: `{"reviews": []}`}
	store := &fakeStore{err: fmt.Errorf("disk full")}

	_, err := newService(t, forge, client, &fakePublisher{}, store).Run(context.Background(), runRequest())
	assert.NoError(t, err)
}

type cancellingClient struct {
	cancel   context.CancelFunc
	response string
}

func (c *cancellingClient) Complete(context.Context, string, string) (string, error) {
	c.cancel()
	return c.response, nil
}

func TestRunPublishSurvivesExpiredRunContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	// the run context dies while the last chunk is still being reviewed
	client := &cancellingClient{cancel: cancel, response: `{"reviews": [{"lineNumber": 11, "severity": "info", "comment": "x"}]}`}
	pub := &fakePublisher{}

	report, err := newService(t, forge, client, pub, nil).Run(ctx, runRequest())
	require.NoError(t, err)

	require.Equal(t, 1, pub.calls)
	assert.NoError(t, pub.ctxErr)
	assert.Equal(t, domain.RunSucceeded, report.Status)
}

func TestRunForgeErrorIsFatal(t *testing.T) {
	forge := &fakeForge{prErr: fmt.Errorf("401 bad credentials")}

	_, err := newService(t, forge, &scriptedClient{}, &fakePublisher{}, nil).Run(context.Background(), runRequest())
	assert.ErrorContains(t, err, "fetch pull request")
}

func TestRunFinalLogIncludesAPIMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := llmhttp.NewDefaultMetrics()
	metrics.RecordRequest("azure-openai")
	metrics.RecordTokens("azure-openai", 1200, 80)
	metrics.RecordDuration("azure-openai", 250*time.Millisecond)

	forge := &fakeForge{pr: review.PullRequest{Title: "T"}, diff: sampleDiff}
	client := &scriptedClient{response: `{"reviews": [{"lineNumber": 11, "severity": "info", "comment": "x"}]}`}
	pub := &fakePublisher{}

	svc := review.NewService(review.ServiceOptions{
		Forge:     forge,
		Chunker:   review.NewChunker(10000, func(s string) int { return len(s) / 4 }),
		Orch:      review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 2}, nil),
		Publisher: pub,
		Logger:    zap.New(core),
		Metrics:   metrics,
	})

	_, err := svc.Run(context.Background(), runRequest())
	require.NoError(t, err)

	entries := logs.FilterMessage("run finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 1, fields["api_requests"])
	assert.EqualValues(t, 1200, fields["tokens_in"])
	assert.EqualValues(t, 80, fields["tokens_out"])
	assert.EqualValues(t, 250*time.Millisecond, fields["api_duration"])
}
