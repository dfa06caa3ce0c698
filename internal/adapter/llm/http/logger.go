package http

import (
	"time"

	"go.uber.org/zap"
)

// Logger provides structured logging for API calls. API keys are redacted
// before they reach any log sink.
type Logger interface {
	// LogRequest logs an outgoing API request.
	LogRequest(req RequestLog)

	// LogResponse logs an API response with timing and token info.
	LogResponse(resp ResponseLog)

	// LogError logs an API error.
	LogError(errLog ErrorLog)
}

// RequestLog contains request information for logging.
type RequestLog struct {
	Provider    string
	Deployment  string
	PromptChars int
	APIKey      string // redacted to last 4 chars before logging
}

// ResponseLog contains response information for logging.
type ResponseLog struct {
	Provider     string
	Deployment   string
	Duration     time.Duration
	TokensIn     int
	TokensOut    int
	StatusCode   int
	FinishReason string
}

// ErrorLog contains error information for logging.
type ErrorLog struct {
	Provider   string
	Deployment string
	Duration   time.Duration
	Err        error
	ErrorType  ErrorType
	StatusCode int
	Retryable  bool
}

// RedactAPIKey masks an API key down to its last four characters.
func RedactAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// ZapLogger implements Logger on top of a zap logger.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger wraps a zap logger for API call logging.
func NewZapLogger(log *zap.Logger) *ZapLogger {
	return &ZapLogger{log: log}
}

// LogRequest logs an API request at debug level.
func (l *ZapLogger) LogRequest(req RequestLog) {
	l.log.Debug("api request",
		zap.String("provider", req.Provider),
		zap.String("deployment", req.Deployment),
		zap.Int("prompt_chars", req.PromptChars),
		zap.String("api_key", RedactAPIKey(req.APIKey)),
	)
}

// LogResponse logs an API response at info level.
func (l *ZapLogger) LogResponse(resp ResponseLog) {
	l.log.Info("api response",
		zap.String("provider", resp.Provider),
		zap.String("deployment", resp.Deployment),
		zap.Duration("duration", resp.Duration),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int("status", resp.StatusCode),
		zap.String("finish_reason", resp.FinishReason),
	)
}

// LogError logs an API failure at warn level; retry handling decides
// whether it is terminal.
func (l *ZapLogger) LogError(errLog ErrorLog) {
	l.log.Warn("api error",
		zap.String("provider", errLog.Provider),
		zap.String("deployment", errLog.Deployment),
		zap.Duration("duration", errLog.Duration),
		zap.String("error_type", errLog.ErrorType.String()),
		zap.Int("status", errLog.StatusCode),
		zap.Bool("retryable", errLog.Retryable),
		zap.Error(errLog.Err),
	)
}
