// Package trigger decides whether an incoming event should start a review.
// Comment events run only when the comment carries the review command, and
// any event can opt out with a skip marker in the PR title or description.
package trigger

import (
	"regexp"
	"strings"
)

// commandPattern matches a /review command at the start of a comment line.
var commandPattern = regexp.MustCompile(`(?im)^\s*/review\b`)

// skipTriggerPattern matches [skip code-review] or [skip-code-review]
// (case-insensitive).
var skipTriggerPattern = regexp.MustCompile(`(?i)\[skip[ -]code-review\]`)

// ContainsCommand checks whether a comment asks for a review.
func ContainsCommand(text string) bool {
	return commandPattern.MatchString(text)
}

// ContainsSkipTrigger checks whether text opts out of review.
func ContainsSkipTrigger(text string) bool {
	return skipTriggerPattern.MatchString(text)
}

// CheckRequest contains the event fields examined for a trigger decision.
type CheckRequest struct {
	// CommentBody is the triggering comment, empty for pull_request events.
	CommentBody string
	// FromComment is true when the event is an issue_comment.
	FromComment   bool
	PRTitle       string
	PRDescription string
}

// Decision is the outcome of a trigger check.
type Decision struct {
	Run    bool
	Reason string
}

// Check decides whether to run. Skip markers win over everything; a comment
// event without the review command is ignored silently.
func Check(req CheckRequest) Decision {
	if ContainsSkipTrigger(strings.TrimSpace(req.PRTitle)) {
		return Decision{Reason: "skip trigger in PR title"}
	}
	if ContainsSkipTrigger(req.PRDescription) {
		return Decision{Reason: "skip trigger in PR description"}
	}

	if req.FromComment {
		if !ContainsCommand(req.CommentBody) {
			return Decision{Reason: "comment does not contain the review command"}
		}
		return Decision{Run: true, Reason: "review command in comment"}
	}

	return Decision{Run: true, Reason: "pull request event"}
}
