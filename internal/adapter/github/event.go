package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Event identifies the pull request a workflow run is acting on, plus the
// triggering comment body when the run came from an issue_comment event.
type Event struct {
	Owner       string
	Repo        string
	Number      int
	CommentBody string
}

// eventPayload covers the two GitHub Actions event shapes we handle:
// issue_comment (PR number under issue.number) and pull_request (top-level
// number).
type eventPayload struct {
	Number int `json:"number"`
	Issue  *struct {
		Number      int              `json:"number"`
		PullRequest *json.RawMessage `json:"pull_request"`
	} `json:"issue"`
	Comment *struct {
		Body string `json:"body"`
	} `json:"comment"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// ParseEventFile reads and parses the Actions event payload at path,
// normally the value of GITHUB_EVENT_PATH.
func ParseEventFile(path string) (Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("read event payload: %w", err)
	}
	return ParseEvent(data)
}

// ParseEvent extracts the PR reference from an event payload.
// A comment on a plain issue (no pull_request attachment) is rejected so
// the caller can exit cleanly without touching any API.
func ParseEvent(data []byte) (Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, fmt.Errorf("parse event payload: %w", err)
	}

	event := Event{}

	switch {
	case payload.Issue != nil:
		if payload.Issue.PullRequest == nil {
			return Event{}, fmt.Errorf("comment is not on a pull request")
		}
		event.Number = payload.Issue.Number
		if payload.Comment != nil {
			event.CommentBody = payload.Comment.Body
		}
	case payload.Number > 0:
		event.Number = payload.Number
	default:
		return Event{}, fmt.Errorf("event payload has no pull request number")
	}

	owner, repo, ok := strings.Cut(payload.Repository.FullName, "/")
	if !ok || owner == "" || repo == "" {
		return Event{}, fmt.Errorf("event payload has invalid repository name %q", payload.Repository.FullName)
	}
	event.Owner = owner
	event.Repo = repo

	return event, nil
}
