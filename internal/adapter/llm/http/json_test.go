package http_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
)

func TestExtractJSONFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced json block",
			input: "Here you go:\n```json\n{\"reviews\": []}\n```\nDone.",
			want:  `{"reviews": []}`,
		},
		{
			name:  "plain fence",
			input: "```\n{\"reviews\": []}\n```",
			want:  `{"reviews": []}`,
		},
		{
			name:  "raw json",
			input: `{"reviews": []}`,
			want:  `{"reviews": []}`,
		},
		{
			name:  "prose around raw json",
			input: "My findings follow.\n{\"reviews\": [{\"lineNumber\": 3}]}\nThat is all.",
			want:  `{"reviews": [{"lineNumber": 3}]}`,
		},
		{
			name:  "nested fence inside json",
			input: "```json\n{\"comment\": \"use ```go\\nfoo()\\n``` instead\"}\n```",
			want:  "{\"comment\": \"use ```go\\nfoo()\\n``` instead\"}",
		},
		{
			name:  "no json at all",
			input: "nothing structured here",
			want:  "nothing structured here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llmhttp.ExtractJSONFromMarkdown(tt.input))
		})
	}
}
