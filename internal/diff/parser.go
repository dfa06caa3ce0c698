package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackalby/pr-review-bot/internal/domain"
)

// hunkHeaderRegex matches "@@ -a,b +c,d @@" with the counts optional,
// as in "@@ -1 +1 @@" for single-line hunks.
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// MalformedDiffError describes a file whose diff could not be parsed.
// The file is dropped from the run; the error is logged, never fatal.
type MalformedDiffError struct {
	Path   string
	Reason string
}

func (e *MalformedDiffError) Error() string {
	return fmt.Sprintf("malformed diff for %s: %s", e.Path, e.Reason)
}

// Parse parses a full pull-request unified diff into per-file diffs.
// Files that fail to parse are reported in the second return value and
// omitted from the first; parsing always continues with the next file.
func Parse(text string) ([]domain.FileDiff, []*MalformedDiffError) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	p := &parser{}
	// A newline-terminated diff splits into a trailing "" that is an
	// artifact of the split, not a context line; it must not satisfy an
	// over-claiming hunk header's counters.
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		p.consume(line)
	}
	p.flushFile()

	return p.files, p.dropped
}

type parser struct {
	files   []domain.FileDiff
	dropped []*MalformedDiffError

	current   *domain.FileDiff
	hunk      *domain.Hunk
	oldLine   int // next old-side line number
	newLine   int // next new-side line number
	remOld    int // old-side lines still expected in the hunk
	remNew    int // new-side lines still expected in the hunk
	malformed *MalformedDiffError
}

func (p *parser) consume(line string) {
	if strings.HasPrefix(line, "diff --git") {
		p.flushFile()
		p.current = &domain.FileDiff{}
		// "diff --git a/old b/new" is a fallback path source; the
		// ---/+++ headers below are authoritative when present.
		if fields := strings.Fields(line); len(fields) >= 4 {
			p.current.OldPath = strings.TrimPrefix(fields[2], "a/")
			p.current.Path = strings.TrimPrefix(fields[3], "b/")
		}
		return
	}

	if p.current == nil || p.malformed != nil {
		return
	}

	switch {
	case strings.HasPrefix(line, "index "),
		strings.HasPrefix(line, "old mode"),
		strings.HasPrefix(line, "new mode"),
		strings.HasPrefix(line, "new file mode"),
		strings.HasPrefix(line, "deleted file mode"),
		strings.HasPrefix(line, "similarity index"):
		return

	case strings.HasPrefix(line, "rename from "):
		p.current.Renamed = true
		p.current.OldPath = strings.TrimPrefix(line, "rename from ")
		return

	case strings.HasPrefix(line, "rename to "):
		p.current.Renamed = true
		p.current.Path = strings.TrimPrefix(line, "rename to ")
		return

	case strings.HasPrefix(line, "Binary files "), strings.HasPrefix(line, "GIT binary patch"):
		p.current.Binary = true
		return

	case strings.HasPrefix(line, "--- "):
		if path := strings.TrimPrefix(line, "--- "); path != "/dev/null" {
			p.current.OldPath = strings.TrimPrefix(path, "a/")
		}
		return

	case strings.HasPrefix(line, "+++ "):
		if path := strings.TrimPrefix(line, "+++ "); path != "/dev/null" {
			p.current.Path = strings.TrimPrefix(path, "b/")
		} else if p.current.Path == "" {
			// Deleted file: keep the old path so the drop is attributable.
			p.current.Path = p.current.OldPath
		}
		return

	case strings.HasPrefix(line, "@@"):
		p.flushHunk()
		m := hunkHeaderRegex.FindStringSubmatch(line)
		if m == nil {
			p.fail("unparseable hunk header %q", line)
			return
		}
		h := domain.Hunk{
			Header:   line,
			OldStart: atoiOr(m[1], 0),
			OldLines: atoiOr(m[2], 1),
			NewStart: atoiOr(m[3], 0),
			NewLines: atoiOr(m[4], 1),
		}
		p.hunk = &h
		p.oldLine = h.OldStart
		p.newLine = h.NewStart
		p.remOld = h.OldLines
		p.remNew = h.NewLines
		return
	}

	if p.hunk == nil {
		return
	}

	if strings.HasPrefix(line, "\\") {
		// "\ No newline at end of file" marker; counts against neither side.
		return
	}

	if p.remOld <= 0 && p.remNew <= 0 {
		// Hunk body already satisfied the header counts; anything further
		// before the next header means the counts were wrong.
		if line != "" {
			p.fail("hunk body exceeds header counts at %q", line)
		}
		return
	}

	switch {
	case strings.HasPrefix(line, "+"):
		n := p.newLine
		p.hunk.Lines = append(p.hunk.Lines, domain.Line{
			Kind:    domain.LineAdded,
			Content: line[1:],
			NewLine: &n,
		})
		p.newLine++
		p.remNew--

	case strings.HasPrefix(line, "-"):
		o := p.oldLine
		p.hunk.Lines = append(p.hunk.Lines, domain.Line{
			Kind:    domain.LineRemoved,
			Content: line[1:],
			OldLine: &o,
		})
		p.oldLine++
		p.remOld--

	case strings.HasPrefix(line, " "), line == "":
		// Some generators emit truly empty context lines without the
		// leading space.
		content := line
		if content != "" {
			content = line[1:]
		}
		o, n := p.oldLine, p.newLine
		p.hunk.Lines = append(p.hunk.Lines, domain.Line{
			Kind:    domain.LineContext,
			Content: content,
			OldLine: &o,
			NewLine: &n,
		})
		p.oldLine++
		p.newLine++
		p.remOld--
		p.remNew--

	default:
		p.fail("unexpected line in hunk: %q", line)
	}
}

// flushHunk validates the finished hunk against its header counts and
// appends it to the current file.
func (p *parser) flushHunk() {
	if p.hunk == nil || p.malformed != nil {
		p.hunk = nil
		return
	}
	if p.remOld != 0 || p.remNew != 0 {
		p.fail("hunk %q line counts do not match body (old short %d, new short %d)",
			p.hunk.Header, p.remOld, p.remNew)
		p.hunk = nil
		return
	}
	p.current.Hunks = append(p.current.Hunks, *p.hunk)
	p.hunk = nil
}

func (p *parser) flushFile() {
	p.flushHunk()
	if p.current == nil {
		return
	}
	if p.malformed != nil {
		p.dropped = append(p.dropped, p.malformed)
	} else if p.current.Path != "" {
		p.files = append(p.files, *p.current)
	}
	p.current = nil
	p.malformed = nil
}

func (p *parser) fail(format string, args ...any) {
	if p.malformed != nil {
		return
	}
	path := ""
	if p.current != nil {
		path = p.current.Path
		if path == "" {
			path = p.current.OldPath
		}
	}
	p.malformed = &MalformedDiffError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
