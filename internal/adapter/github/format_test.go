package github_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackalby/pr-review-bot/internal/adapter/github"
	"github.com/jackalby/pr-review-bot/internal/domain"
)

func TestFormatCommentBody(t *testing.T) {
	comment := domain.ReviewComment{
		File:     "app.py",
		Line:     12,
		Severity: domain.SeverityError,
		Message:  "SQL query built from unsanitised input.",
	}

	body := github.FormatCommentBody(comment)

	assert.Contains(t, body, "**Severity:** error")
	assert.Contains(t, body, "SQL query built from unsanitised input.")
	assert.True(t, body[len(body)-1] == '\n')
}
