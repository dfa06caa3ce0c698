package review

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// ParseExcludePatterns splits a comma-separated glob list into trimmed
// patterns, dropping empty entries.
func ParseExcludePatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// FilterExcluded removes files whose path matches any exclude pattern.
// Matching is case-sensitive and supports doublestar globs, so "vendor/**"
// excludes a whole tree while "*.md" only matches top-level markdown files.
func FilterExcluded(files []domain.FileDiff, patterns []string) []domain.FileDiff {
	if len(patterns) == 0 {
		return files
	}
	kept := make([]domain.FileDiff, 0, len(files))
	for _, f := range files {
		if !matchesAny(f.Path, patterns) {
			kept = append(kept, f)
		}
	}
	return kept
}

func matchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
