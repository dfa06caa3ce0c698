package github

import (
	"context"
	"fmt"
	"net/url"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

// Client wraps the GitHub REST API for the three operations a review run
// performs: fetch PR metadata, fetch the unified diff, and post a review.
type Client struct {
	gh *gh.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at a different API root, for GitHub
// Enterprise or a test server. The URL must end with a trailing slash.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base URL: %w", err)
		}
		c.gh.BaseURL = u
		return nil
	}
}

// NewClient builds an authenticated client from a personal access token or
// Actions-provided GITHUB_TOKEN.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c := &Client{gh: gh.NewClient(oauth2.NewClient(context.Background(), ts))}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// PullRequest fetches the title, description and head SHA of a pull request.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (review.PullRequest, error) {
	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return review.PullRequest{}, mapError("get pull request", resp, err)
	}
	return review.PullRequest{
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		HeadSHA:     pr.GetHead().GetSHA(),
	}, nil
}

// Diff fetches the pull request as a unified diff.
func (c *Client) Diff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, resp, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", mapError("get pull request diff", resp, err)
	}
	return diff, nil
}

// CreateReview posts one review event carrying a batch of line comments.
// Comments anchor to new-file line numbers on the right side of the diff.
func (c *Client) CreateReview(ctx context.Context, owner, repo string, number int, summary string, comments []domain.ReviewComment) error {
	draft := make([]*gh.DraftReviewComment, 0, len(comments))
	for _, comment := range comments {
		draft = append(draft, &gh.DraftReviewComment{
			Path: gh.Ptr(comment.File),
			Line: gh.Ptr(comment.Line),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(FormatCommentBody(comment)),
		})
	}
	review := &gh.PullRequestReviewRequest{
		Body:     gh.Ptr(summary),
		Event:    gh.Ptr("COMMENT"),
		Comments: draft,
	}
	_, resp, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, number, review)
	if err != nil {
		return mapError("create review", resp, err)
	}
	return nil
}
