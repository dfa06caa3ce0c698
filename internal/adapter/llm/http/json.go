package http

import (
	"regexp"
	"strings"
)

// jsonBlockRegex matches a fenced code block, greedily to the last closing
// fence so JSON that itself contains fenced example code is kept intact.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")

// ExtractJSONFromMarkdown isolates the JSON payload from model output that
// may wrap it in prose or a markdown code block. If no fence is found the
// trimmed original text is returned, which may already be raw JSON.
func ExtractJSONFromMarkdown(text string) string {
	matches := jsonBlockRegex.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// Without a fence, locate the outermost object so a leading sentence
	// like "Here are my findings:" does not break decoding.
	trimmed := strings.TrimSpace(text)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
