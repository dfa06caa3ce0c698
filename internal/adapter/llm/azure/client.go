// Package azure implements the completion client for the Azure OpenAI
// chat completions API. Requests address a deployment and API version:
//
//	POST {endpoint}/openai/deployments/{deployment}/chat/completions?api-version={v}
//
// Transient failures (429, 5xx, timeouts) are retried with exponential
// backoff; other failures surface immediately as typed errors.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
)

const (
	providerName   = "azure"
	defaultTimeout = 60 * time.Second

	// defaultMaxTokens caps the model's reply, not the prompt.
	defaultMaxTokens = 4000
)

// Client calls the Azure OpenAI chat completions API.
type Client struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	maxTokens  int
	httpClient *http.Client
	retryConf  llmhttp.RetryConfig
	logger     llmhttp.Logger
	metrics    llmhttp.Metrics
}

// Option adjusts client construction.
type Option func(*Client)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRetryConfig overrides the retry bounds.
func WithRetryConfig(conf llmhttp.RetryConfig) Option {
	return func(c *Client) { c.retryConf = conf }
}

// WithLogger attaches request/response logging.
func WithLogger(logger llmhttp.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches metrics collection.
func WithMetrics(metrics llmhttp.Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithMaxTokens sets the completion token cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// NewClient creates an Azure OpenAI client for one deployment.
func NewClient(endpoint, apiKey, deployment, apiVersion string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: apiVersion,
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf:  llmhttp.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// completionsURL builds the deployment-scoped request URL.
func (c *Client) completionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))
}

// Complete sends one chat completion request and returns the model's text.
// The context carries the per-chunk deadline; expiry is reported as a
// retryable timeout so the retry machine (not this client) decides when
// the chunk is abandoned.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.0,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	if c.logger != nil {
		c.logger.LogRequest(llmhttp.RequestLog{
			Provider:    providerName,
			Deployment:  c.deployment,
			PromptChars: len(userPrompt),
			APIKey:      c.apiKey,
		})
	}

	var text string
	operation := func(ctx context.Context) error {
		if c.metrics != nil {
			c.metrics.RecordRequest(providerName)
		}
		start := time.Now()

		// Build the request per attempt; the body reader is consumed on use.
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(jsonData))
		if reqErr != nil {
			return fmt.Errorf("create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, callErr := c.httpClient.Do(req)
		if callErr != nil {
			return c.observeError(llmhttp.NewTimeoutError(providerName, callErr.Error()), time.Since(start))
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}

		if resp.StatusCode != http.StatusOK {
			return c.observeError(c.mapErrorResponse(resp.StatusCode, body), time.Since(start))
		}

		var chatResp ChatCompletionResponse
		if err := json.Unmarshal(body, &chatResp); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return llmhttp.NewInvalidRequestError(providerName, "no choices in response")
		}

		if c.logger != nil {
			c.logger.LogResponse(llmhttp.ResponseLog{
				Provider:     providerName,
				Deployment:   c.deployment,
				Duration:     time.Since(start),
				TokensIn:     chatResp.Usage.PromptTokens,
				TokensOut:    chatResp.Usage.CompletionTokens,
				StatusCode:   resp.StatusCode,
				FinishReason: chatResp.Choices[0].FinishReason,
			})
		}
		if c.metrics != nil {
			c.metrics.RecordDuration(providerName, time.Since(start))
			c.metrics.RecordTokens(providerName, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
		}

		text = chatResp.Choices[0].Message.Content
		return nil
	}

	if err := llmhttp.RetryWithBackoff(ctx, operation, c.retryConf); err != nil {
		return "", err
	}
	return text, nil
}

// observeError logs and counts a typed API error before returning it.
func (c *Client) observeError(apiErr *llmhttp.Error, duration time.Duration) error {
	if c.logger != nil {
		c.logger.LogError(llmhttp.ErrorLog{
			Provider:   providerName,
			Deployment: c.deployment,
			Duration:   duration,
			Err:        apiErr,
			ErrorType:  apiErr.Type,
			StatusCode: apiErr.StatusCode,
			Retryable:  apiErr.Retryable,
		})
	}
	if c.metrics != nil {
		c.metrics.RecordError(providerName, apiErr.Type)
	}
	return apiErr
}

// mapErrorResponse converts Azure OpenAI error responses to typed errors.
func (c *Client) mapErrorResponse(statusCode int, body []byte) *llmhttp.Error {
	message := fmt.Sprintf("HTTP %d", statusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	} else if len(body) > 0 && len(body) < 200 {
		message = string(body)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmhttp.NewAuthenticationError(providerName, message)
	case http.StatusTooManyRequests:
		return llmhttp.NewRateLimitError(providerName, message)
	case http.StatusNotFound:
		return llmhttp.NewDeploymentNotFoundError(providerName, message)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(message), "content filter") ||
			errResp.Error.Code == "content_filter" {
			return llmhttp.NewContentFilteredError(providerName, message)
		}
		return llmhttp.NewInvalidRequestError(providerName, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return llmhttp.NewServiceUnavailableError(providerName, message, statusCode)
	default:
		return &llmhttp.Error{
			Type:       llmhttp.ErrTypeUnknown,
			Message:    message,
			StatusCode: statusCode,
			Retryable:  statusCode >= 500,
			Provider:   providerName,
		}
	}
}
