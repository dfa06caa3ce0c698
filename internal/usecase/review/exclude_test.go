package review_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackalby/pr-review-bot/internal/domain"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

func TestParseExcludePatterns(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "*.md", []string{"*.md"}},
		{"multiple with spaces", "*.md, vendor/** ,dist/*", []string{"*.md", "vendor/**", "dist/*"}},
		{"trailing comma", "*.lock,", []string{"*.lock"}},
		{"only commas", ",,", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, review.ParseExcludePatterns(tc.raw))
		})
	}
}

func TestFilterExcluded(t *testing.T) {
	files := []domain.FileDiff{
		{Path: "README.md"},
		{Path: "app.py"},
		{Path: "vendor/lib/util.go"},
		{Path: "docs/guide.md"},
	}

	kept := review.FilterExcluded(files, []string{"*.md", "vendor/**"})

	paths := make([]string, 0, len(kept))
	for _, f := range kept {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"app.py", "docs/guide.md"}, paths)
}

func TestFilterExcludedDoublestar(t *testing.T) {
	files := []domain.FileDiff{
		{Path: "docs/guide.md"},
		{Path: "src/main.go"},
	}

	kept := review.FilterExcluded(files, []string{"**/*.md"})

	assert.Len(t, kept, 1)
	assert.Equal(t, "src/main.go", kept[0].Path)
}

func TestFilterExcludedCaseSensitive(t *testing.T) {
	files := []domain.FileDiff{{Path: "README.MD"}}

	kept := review.FilterExcluded(files, []string{"*.md"})

	assert.Len(t, kept, 1)
}

func TestFilterExcludedNoPatterns(t *testing.T) {
	files := []domain.FileDiff{{Path: "app.py"}}

	assert.Equal(t, files, review.FilterExcluded(files, nil))
}
