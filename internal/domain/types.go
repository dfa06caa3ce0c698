package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// LineKind classifies a single line within a diff hunk.
type LineKind int

const (
	// LineContext is an unchanged line present on both sides.
	LineContext LineKind = iota
	// LineAdded is a line present only in the new file version.
	LineAdded
	// LineRemoved is a line present only in the old file version.
	LineRemoved
)

// Line is one line of a diff hunk. OldLine and NewLine carry the per-side
// line numbers; a pure addition has no OldLine and a pure removal has no
// NewLine. Only lines with a NewLine can anchor an inline review comment.
type Line struct {
	Kind    LineKind
	Content string
	OldLine *int
	NewLine *int
}

// Addressable reports whether an inline comment may be anchored to this line.
func (l Line) Addressable() bool {
	return l.NewLine != nil
}

// Hunk is one @@ region of a unified diff.
type Hunk struct {
	Header   string // original "@@ -a,b +c,d @@ ..." line
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Text reconstructs the unified-diff text of the hunk, header included.
func (h Hunk) Text() string {
	var sb strings.Builder
	sb.WriteString(h.Header)
	sb.WriteByte('\n')
	for _, line := range h.Lines {
		switch line.Kind {
		case LineAdded:
			sb.WriteByte('+')
		case LineRemoved:
			sb.WriteByte('-')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(line.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FileDiff captures the parsed change for a single file. Instances are built
// once by the diff parser and never mutated afterwards.
type FileDiff struct {
	Path    string
	OldPath string
	Binary  bool
	Renamed bool
	Hunks   []Hunk
}

// Chunk is a unit of review work sized to fit the completion service's
// context budget. A chunk references a contiguous range of one file's hunks
// and never spans two files.
type Chunk struct {
	ID              string
	File            string
	Hunks           []Hunk
	EstimatedTokens int
	Oversized       bool
}

// DiffText returns the concatenated hunk text sent to the model.
func (c Chunk) DiffText() string {
	var sb strings.Builder
	for _, h := range c.Hunks {
		sb.WriteString(h.Text())
	}
	return sb.String()
}

// NewChunkID derives a deterministic chunk identifier from the file path and
// the hunk range it covers. Identical inputs always produce the same ID,
// which keeps chunk boundaries reproducible across runs.
func NewChunkID(file string, firstHunk, lastHunk int) string {
	payload := fmt.Sprintf("%s|%d|%d", file, firstHunk, lastHunk)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:8])
}

// Severity ranks review comments. Higher values outrank lower ones when
// deduplicating overlapping comments.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the wire representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseSeverity maps a model-emitted severity string to a Severity.
// Matching is case-insensitive. Unrecognised values are rejected so the
// response parser can discard the record instead of guessing.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, true
	case "warning", "warn":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// ReviewComment is a single piece of model feedback anchored to a new-file
// line. ChunkID records which chunk produced it.
type ReviewComment struct {
	File     string
	Line     int
	Severity Severity
	Message  string
	ChunkID  string
}

// ReviewResult is the terminal artifact of the pipeline: the deduplicated,
// ordered comment set plus an overall summary for the review body.
type ReviewResult struct {
	Comments []ReviewComment
	Summary  string
}

// RunStatus describes the overall outcome of a review run.
type RunStatus int

const (
	// RunSucceeded means every chunk and publish batch completed.
	RunSucceeded RunStatus = iota
	// RunDegraded means some chunks or batches failed but feedback was
	// still delivered (possibly empty).
	RunDegraded
	// RunFailed means the run produced no review at all.
	RunFailed
)

// String returns a short label for logs and the run history store.
func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "success"
	case RunDegraded:
		return "degraded"
	case RunFailed:
		return "failed"
	default:
		return "unknown"
	}
}
