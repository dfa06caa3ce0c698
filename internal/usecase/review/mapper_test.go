package review_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

func intPtr(n int) *int { return &n }

func addressableFile(path string, lines ...int) domain.FileDiff {
	hunk := domain.Hunk{Header: "@@ test @@"}
	for _, n := range lines {
		hunk.Lines = append(hunk.Lines, domain.Line{
			Kind:    domain.LineAdded,
			Content: "x",
			NewLine: intPtr(n),
		})
	}
	return domain.FileDiff{Path: path, Hunks: []domain.Hunk{hunk}}
}

func TestBuildAddressableIndex(t *testing.T) {
	removed := domain.Line{Kind: domain.LineRemoved, Content: "y", OldLine: intPtr(4)}
	file := addressableFile("app.py", 10, 11)
	file.Hunks[0].Lines = append(file.Hunks[0].Lines, removed)

	index := review.BuildAddressableIndex([]domain.FileDiff{file})

	assert.True(t, index.Addressable("app.py", 10))
	assert.True(t, index.Addressable("app.py", 11))
	assert.False(t, index.Addressable("app.py", 4))
	assert.False(t, index.Addressable("other.py", 10))
}

func TestMapCommentsDropsUnanchored(t *testing.T) {
	index := review.BuildAddressableIndex([]domain.FileDiff{addressableFile("app.py", 10)})

	comments := []domain.ReviewComment{
		{File: "app.py", Line: 10, Severity: domain.SeverityWarning, Message: "Real."},
		{File: "app.py", Line: 99, Severity: domain.SeverityError, Message: "Hallucinated line."},
		{File: "ghost.py", Line: 10, Severity: domain.SeverityError, Message: "Hallucinated file."},
	}

	kept, dropped := review.MapComments(comments, index)

	require.Len(t, kept, 1)
	assert.Equal(t, "Real.", kept[0].Message)
	require.Len(t, dropped, 2)
	assert.Contains(t, dropped[0].Reason, "addressable")
}

func TestMapCommentsDedupKeepsHigherSeverity(t *testing.T) {
	index := review.BuildAddressableIndex([]domain.FileDiff{addressableFile("app.py", 10)})

	comments := []domain.ReviewComment{
		{File: "app.py", Line: 10, Severity: domain.SeverityInfo, Message: "Unchecked  error."},
		{File: "app.py", Line: 10, Severity: domain.SeverityError, Message: "unchecked error."},
	}

	kept, dropped := review.MapComments(comments, index)

	assert.Empty(t, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, domain.SeverityError, kept[0].Severity)
	assert.Equal(t, "Unchecked  error.", kept[0].Message)
}

func TestMapCommentsStableOrdering(t *testing.T) {
	index := review.BuildAddressableIndex([]domain.FileDiff{
		addressableFile("b.go", 5, 20),
		addressableFile("a.go", 7),
	})

	comments := []domain.ReviewComment{
		{File: "b.go", Line: 20, Message: "later line"},
		{File: "a.go", Line: 7, Message: "first file"},
		{File: "b.go", Line: 5, Message: "earlier line"},
	}

	kept, _ := review.MapComments(comments, index)

	require.Len(t, kept, 3)
	assert.Equal(t, "first file", kept[0].Message)
	assert.Equal(t, "earlier line", kept[1].Message)
	assert.Equal(t, "later line", kept[2].Message)
}

func TestMapCommentsIdempotent(t *testing.T) {
	index := review.BuildAddressableIndex([]domain.FileDiff{addressableFile("app.py", 10, 11)})

	comments := []domain.ReviewComment{
		{File: "app.py", Line: 11, Severity: domain.SeverityInfo, Message: "B"},
		{File: "app.py", Line: 10, Severity: domain.SeverityInfo, Message: "A"},
	}

	once, _ := review.MapComments(comments, index)
	twice, _ := review.MapComments(once, index)

	assert.Equal(t, once, twice)
}
