package review

import (
	"sort"
	"strings"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// AddressableIndex records which new-file line numbers a diff can anchor a
// comment to: only lines that appear in a hunk with a new-side line number,
// keyed by file path.
type AddressableIndex map[string]map[int]bool

// BuildAddressableIndex walks the parsed diff and collects every line a
// GitHub review comment may legally attach to.
func BuildAddressableIndex(files []domain.FileDiff) AddressableIndex {
	index := make(AddressableIndex, len(files))
	for _, file := range files {
		lines := make(map[int]bool)
		for _, hunk := range file.Hunks {
			for _, line := range hunk.Lines {
				if line.Addressable() {
					lines[*line.NewLine] = true
				}
			}
		}
		if len(lines) > 0 {
			index[file.Path] = lines
		}
	}
	return index
}

// Addressable reports whether a comment may anchor to the given file and
// new-side line.
func (idx AddressableIndex) Addressable(file string, line int) bool {
	return idx[file][line]
}

// DroppedComment records a model comment rejected during anchoring.
type DroppedComment struct {
	Comment domain.ReviewComment
	Reason  string
}

// MapComments validates, deduplicates and orders model comments for
// publishing. Comments that point outside the diff's addressable lines are
// dropped. Exact duplicates by file, line and normalized message collapse to
// one comment, keeping the higher severity. The result is sorted by file
// then line, so repeated runs over the same input produce identical output.
func MapComments(comments []domain.ReviewComment, index AddressableIndex) ([]domain.ReviewComment, []DroppedComment) {
	var dropped []DroppedComment

	type dedupKey struct {
		file    string
		line    int
		message string
	}
	seen := make(map[dedupKey]int)
	kept := make([]domain.ReviewComment, 0, len(comments))

	for _, comment := range comments {
		if !index.Addressable(comment.File, comment.Line) {
			dropped = append(dropped, DroppedComment{
				Comment: comment,
				Reason:  "line is not an addressable diff line",
			})
			continue
		}

		key := dedupKey{comment.File, comment.Line, normalizeMessage(comment.Message)}
		if at, ok := seen[key]; ok {
			if comment.Severity > kept[at].Severity {
				kept[at].Severity = comment.Severity
			}
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, comment)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].File != kept[j].File {
			return kept[i].File < kept[j].File
		}
		return kept[i].Line < kept[j].Line
	})

	return kept, dropped
}

func normalizeMessage(message string) string {
	return strings.ToLower(strings.Join(strings.Fields(message), " "))
}
