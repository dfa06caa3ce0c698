package review_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient returns canned responses keyed by file path and records peak
// concurrency.
type fakeClient struct {
	mu        sync.Mutex
	inFlight  int
	peak      int
	calls     int
	responses map[string]string
	errs      map[string]error
	delay     time.Duration
}

func (f *fakeClient) Complete(ctx context.Context, _, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.release()
			return "", ctx.Err()
		}
	}

	f.release()
	for file, err := range f.errs {
		if containsFile(userPrompt, file) {
			return "", err
		}
	}
	for file, resp := range f.responses {
		if containsFile(userPrompt, file) {
			return resp, nil
		}
	}
	return `{"reviews": []}`, nil
}

func (f *fakeClient) release() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

// the prompt quotes the path, which prevents partial matches
func containsFile(prompt, file string) bool {
	return strings.Contains(prompt, fmt.Sprintf("%q", file))
}

func chunkFor(file string, oversized bool) domain.Chunk {
	hunk := makeHunk(1, 2)
	return domain.Chunk{
		ID:        domain.NewChunkID(file, 1, 1),
		File:      file,
		Hunks:     []domain.Hunk{hunk},
		Oversized: oversized,
	}
}

func TestOrchestratorCollectsComments(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"a.go": `{"reviews": [{"lineNumber": 1, "severity": "warning", "comment": "A"}]}`,
		"b.go": `{"reviews": [{"lineNumber": 2, "severity": "info", "comment": "B"}]}`,
	}}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 2}, nil)
	result := orch.Run(context.Background(), []domain.Chunk{chunkFor("a.go", false), chunkFor("b.go", false)}, review.PromptContext{Title: "t"})

	assert.Empty(t, result.Failures)
	require.Len(t, result.Comments, 2)
	// chunk order, not completion order
	assert.Equal(t, "A", result.Comments[0].Message)
	assert.Equal(t, "B", result.Comments[1].Message)
}

func TestOrchestratorBoundsConcurrency(t *testing.T) {
	client := &fakeClient{delay: 20 * time.Millisecond}

	chunks := make([]domain.Chunk, 8)
	for i := range chunks {
		chunks[i] = chunkFor(fmt.Sprintf("f%d.go", i), false)
	}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 2}, nil)
	orch.Run(context.Background(), chunks, review.PromptContext{})

	assert.Equal(t, 8, client.calls)
	assert.LessOrEqual(t, client.peak, 2)
}

func TestOrchestratorFailureDoesNotAbortSiblings(t *testing.T) {
	client := &fakeClient{
		responses: map[string]string{
			"good.go": `{"reviews": [{"lineNumber": 1, "severity": "error", "comment": "Bug."}]}`,
		},
		errs: map[string]error{"bad.go": fmt.Errorf("provider exploded")},
	}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 2}, nil)
	result := orch.Run(context.Background(), []domain.Chunk{chunkFor("bad.go", false), chunkFor("good.go", false)}, review.PromptContext{})

	require.Len(t, result.Comments, 1)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bad.go", result.Failures[0].File)
	assert.Contains(t, result.Failures[0].Reason, "provider exploded")
}

func TestOrchestratorUnparseableResponseFailsChunk(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"a.go": "no json here at all",
	}}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{}, nil)
	result := orch.Run(context.Background(), []domain.Chunk{chunkFor("a.go", false)}, review.PromptContext{})

	assert.Empty(t, result.Comments)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "decode model response")
}

func TestOrchestratorOversizedRejectPolicy(t *testing.T) {
	client := &fakeClient{}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Oversized: review.OversizedReject}, nil)
	result := orch.Run(context.Background(), []domain.Chunk{chunkFor("big.go", true)}, review.PromptContext{})

	assert.Equal(t, 0, client.calls)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "token budget")
}

func TestOrchestratorOversizedSendPolicy(t *testing.T) {
	client := &fakeClient{}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Oversized: review.OversizedSend}, nil)
	result := orch.Run(context.Background(), []domain.Chunk{chunkFor("big.go", true)}, review.PromptContext{})

	assert.Equal(t, 1, client.calls)
	assert.Empty(t, result.Failures)
}

type stubRedactor struct{}

func (stubRedactor) Redact(string) string { return "scrubbed" }

func TestOrchestratorRedactsDiffText(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	client := &recordingClient{onPrompt: func(p string) {
		mu.Lock()
		prompts = append(prompts, p)
		mu.Unlock()
	}}

	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Redactor: stubRedactor{}}, nil)
	orch.Run(context.Background(), []domain.Chunk{chunkFor("a.go", false)}, review.PromptContext{})

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "scrubbed")
	assert.NotContains(t, prompts[0], "@@ test @@")
}

type recordingClient struct {
	onPrompt func(string)
}

func (r *recordingClient) Complete(_ context.Context, _, userPrompt string) (string, error) {
	if r.onPrompt != nil {
		r.onPrompt(userPrompt)
	}
	return `{"reviews": []}`, nil
}

func TestOrchestratorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	orch := review.NewOrchestrator(client, review.OrchestratorConfig{Workers: 1}, nil)
	result := orch.Run(ctx, []domain.Chunk{chunkFor("a.go", false), chunkFor("b.go", false)}, review.PromptContext{})

	// each chunk accounts for itself even when nothing ran
	assert.Len(t, result.Failures, 2)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, domain.RunSucceeded, review.DeriveStatus(5, 0))
	assert.Equal(t, domain.RunSucceeded, review.DeriveStatus(0, 0))
	assert.Equal(t, domain.RunDegraded, review.DeriveStatus(5, 2))
	assert.Equal(t, domain.RunFailed, review.DeriveStatus(5, 5))
}
