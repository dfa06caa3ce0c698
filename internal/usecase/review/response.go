package review

import (
	"encoding/json"
	"fmt"
	"strings"

	llmhttp "github.com/jackalby/pr-review-bot/internal/adapter/llm/http"
	"github.com/jackalby/pr-review-bot/internal/domain"
)

// SkippedRecord describes one model-emitted record that failed validation
// and was dropped. The index refers to the record's position in the
// response array.
type SkippedRecord struct {
	Index  int
	Reason string
}

type modelResponse struct {
	Reviews []json.RawMessage `json:"reviews"`
}

type modelReview struct {
	LineNumber json.Number `json:"lineNumber"`
	Severity   string      `json:"severity"`
	Comment    string      `json:"comment"`
}

// ParseResponse decodes one chunk's model output into review comments.
// The payload must decode as a JSON object with a "reviews" array; a
// payload that does not is an error and fails the whole chunk. Each record
// is decoded and validated individually, so a record that does not even
// decode (a string lineNumber, say) costs only itself, never its siblings.
func ParseResponse(raw string, chunk domain.Chunk) ([]domain.ReviewComment, []SkippedRecord, error) {
	cleaned := llmhttp.ExtractJSONFromMarkdown(raw)

	var payload modelResponse
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	if err := decoder.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode model response: %w", err)
	}

	var (
		comments []domain.ReviewComment
		skipped  []SkippedRecord
	)

	for i, rawRecord := range payload.Reviews {
		var record modelReview
		if err := json.Unmarshal(rawRecord, &record); err != nil {
			skipped = append(skipped, SkippedRecord{Index: i, Reason: fmt.Sprintf("record does not decode: %v", err)})
			continue
		}
		comment, reason := validateRecord(record, chunk)
		if reason != "" {
			skipped = append(skipped, SkippedRecord{Index: i, Reason: reason})
			continue
		}
		comments = append(comments, comment)
	}

	return comments, skipped, nil
}

func validateRecord(record modelReview, chunk domain.Chunk) (domain.ReviewComment, string) {
	line, err := record.LineNumber.Int64()
	if err != nil {
		return domain.ReviewComment{}, fmt.Sprintf("lineNumber %q is not an integer", record.LineNumber.String())
	}
	if line <= 0 {
		return domain.ReviewComment{}, fmt.Sprintf("lineNumber %d is not positive", line)
	}

	severity, ok := domain.ParseSeverity(record.Severity)
	if !ok {
		return domain.ReviewComment{}, fmt.Sprintf("unknown severity %q", record.Severity)
	}

	message := strings.TrimSpace(record.Comment)
	if message == "" {
		return domain.ReviewComment{}, "empty comment"
	}

	return domain.ReviewComment{
		File:     chunk.File,
		Line:     int(line),
		Severity: severity,
		Message:  message,
		ChunkID:  chunk.ID,
	}, ""
}
