package github

import (
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v68/github"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
)

// mapError translates go-github errors into the shared typed error so the
// retry machinery can classify GitHub failures the same way it classifies
// LLM failures.
func mapError(op string, resp *gh.Response, err error) error {
	msg := fmt.Sprintf("%s: %s", op, err.Error())

	var rateLimit *gh.RateLimitError
	if errors.As(err, &rateLimit) {
		return llmhttp.NewRateLimitError("github", msg)
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return llmhttp.NewRateLimitError("github", msg)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return llmhttp.NewAuthenticationError("github", msg)
	case status == http.StatusUnprocessableEntity:
		return llmhttp.NewInvalidRequestError("github", msg)
	case status >= 500:
		return llmhttp.NewServiceUnavailableError("github", msg, status)
	case status >= 400:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    msg,
			StatusCode: status,
			Provider:   "github",
		}
	}
	// Transport-level failures (DNS, refused connection) are worth a retry.
	return &llmhttp.Error{
		Type:      llmhttp.ErrTypeServiceUnavailable,
		Message:   msg,
		Retryable: true,
		Provider:  "github",
	}
}
