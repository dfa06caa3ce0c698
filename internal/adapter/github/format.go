package github

import (
	"fmt"
	"strings"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// FormatCommentBody formats a review comment as GitHub-flavored Markdown.
func FormatCommentBody(c domain.ReviewComment) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("**Severity:** %s\n\n", c.Severity))
	sb.WriteString(c.Message)
	if !strings.HasSuffix(c.Message, "\n") {
		sb.WriteString("\n")
	}

	return sb.String()
}
