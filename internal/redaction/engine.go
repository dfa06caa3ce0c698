// Package redaction strips credential-shaped strings out of diff text
// before it is sent to the model provider. Secrets committed to a PR should
// not leak into a third-party API call or the posted review.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine performs regex-based secret detection and replacement.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates an engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact replaces every detected secret with a stable placeholder. The same
// secret always maps to the same placeholder, so the model can still see
// that two lines reference the same value.
func (e *Engine) Redact(input string) string {
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if _, seen := placeholders[match]; seen {
				continue
			}
			placeholders[match] = placeholder(match)
		}
	}

	result := input
	for secret, repl := range placeholders {
		result = strings.ReplaceAll(result, secret, repl)
	}
	return result
}

func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:4]))
}

func defaultPatterns() []*regexp.Regexp {
	raw := []string{
		// GitHub tokens
		`gh[posru]_[a-zA-Z0-9]{20,}`,
		// OpenAI-style keys
		`sk-[a-zA-Z0-9\-]{20,}`,
		// Azure OpenAI keys assigned in code
		`(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"][0-9a-f]{32}['"]`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// AWS secret keys near an aws identifier
		`(?i)aws.{0,20}?['"][0-9a-zA-Z/+]{40}['"]`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// Slack tokens
		`xox[baprs]-[0-9a-zA-Z\-]{10,}`,
		// JWTs
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// HTTP basic auth credentials embedded in URLs
		`://[^/\s:@]+:[^/\s:@]+@`,
	}

	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	return patterns
}
