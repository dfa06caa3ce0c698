package llm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackalby/pr-review-bot/internal/adapter/llm"
)

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, llm.EstimateTokens(""))

	short := llm.EstimateTokens("hello world")
	assert.Greater(t, short, 0)

	long := llm.EstimateTokens(strings.Repeat("some diff content here\n", 200))
	assert.Greater(t, long, short)
}

func TestEstimateTokens_Deterministic(t *testing.T) {
	text := "def divide(a, b):\n    return a / b\n"
	assert.Equal(t, llm.EstimateTokens(text), llm.EstimateTokens(text))
}
