package review_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

var testChunk = domain.Chunk{ID: "abcd1234", File: "app.py"}

func TestParseResponseValid(t *testing.T) {
	raw := `{"reviews": [
		{"lineNumber": 12, "severity": "warning", "comment": "Unchecked error."},
		{"lineNumber": 30, "severity": "error", "comment": "SQL injection."}
	]}`

	comments, skipped, err := review.ParseResponse(raw, testChunk)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, comments, 2)

	assert.Equal(t, "app.py", comments[0].File)
	assert.Equal(t, 12, comments[0].Line)
	assert.Equal(t, domain.SeverityWarning, comments[0].Severity)
	assert.Equal(t, "abcd1234", comments[0].ChunkID)
}

func TestParseResponseMarkdownFenced(t *testing.T) {
	raw := "Here you go:\n```json\n{\"reviews\": [{\"lineNumber\": 3, \"severity\": \"info\", \"comment\": \"Note.\"}]}\n```"

	comments, skipped, err := review.ParseResponse(raw, testChunk)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, comments, 1)
	assert.Equal(t, 3, comments[0].Line)
}

func TestParseResponseBadRecordDoesNotPoisonSiblings(t *testing.T) {
	raw := `{"reviews": [
		{"lineNumber": 5, "severity": "warning", "comment": "Good record."},
		{"lineNumber": "not-a-number", "severity": "warning", "comment": "Bad record."}
	]}`

	comments, skipped, err := review.ParseResponse(raw, testChunk)
	require.NoError(t, err)

	require.Len(t, comments, 1)
	assert.Equal(t, "Good record.", comments[0].Message)

	require.Len(t, skipped, 1)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Contains(t, skipped[0].Reason, "does not decode")
}

func TestParseResponseUndecodableRecordSkippedIndividually(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"string line number", `{"lineNumber": "twelve", "severity": "info", "comment": "x"}`},
		{"object line number", `{"lineNumber": {"n": 2}, "severity": "info", "comment": "x"}`},
		{"array record", `[1, 2, 3]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"reviews": [` + tc.record + `, {"lineNumber": 7, "severity": "info", "comment": "Still here."}]}`

			comments, skipped, err := review.ParseResponse(raw, testChunk)
			require.NoError(t, err)

			require.Len(t, comments, 1)
			assert.Equal(t, 7, comments[0].Line)

			require.Len(t, skipped, 1)
			assert.Equal(t, 0, skipped[0].Index)
			assert.Contains(t, skipped[0].Reason, "does not decode")
		})
	}
}

func TestParseResponseRecordValidation(t *testing.T) {
	tests := []struct {
		name   string
		record string
		reason string
	}{
		{"zero line", `{"lineNumber": 0, "severity": "info", "comment": "x"}`, "not positive"},
		{"negative line", `{"lineNumber": -4, "severity": "info", "comment": "x"}`, "not positive"},
		{"unknown severity", `{"lineNumber": 2, "severity": "critical", "comment": "x"}`, "unknown severity"},
		{"empty comment", `{"lineNumber": 2, "severity": "info", "comment": "  "}`, "empty comment"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			comments, skipped, err := review.ParseResponse(`{"reviews": [`+tc.record+`]}`, testChunk)
			require.NoError(t, err)
			assert.Empty(t, comments)
			require.Len(t, skipped, 1)
			assert.Contains(t, skipped[0].Reason, tc.reason)
		})
	}
}

func TestParseResponseUnparseablePayload(t *testing.T) {
	_, _, err := review.ParseResponse("I could not review this diff, sorry.", testChunk)
	assert.ErrorContains(t, err, "decode model response")
}

func TestParseResponseEmptyReviews(t *testing.T) {
	comments, skipped, err := review.ParseResponse(`{"reviews": []}`, testChunk)
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.Empty(t, skipped)
}
