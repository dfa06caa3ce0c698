package review

import (
	"github.com/jackalby/pr-review-bot/internal/domain"
)

// Estimator reports the approximate token count of a piece of text.
type Estimator func(text string) int

// Chunker splits parsed file diffs into token-bounded chunks. Hunks from
// different files never share a chunk, and hunk order within a file is
// preserved.
type Chunker struct {
	budget   int
	estimate Estimator
}

// NewChunker builds a chunker with the given per-chunk token budget.
func NewChunker(budget int, estimate Estimator) *Chunker {
	return &Chunker{budget: budget, estimate: estimate}
}

// Chunk packs each file's hunks greedily: hunks accumulate into the current
// chunk until adding the next one would exceed the budget, then a new chunk
// starts. A single hunk that alone exceeds the budget still becomes its own
// chunk, flagged Oversized so the caller can apply its policy.
func (c *Chunker) Chunk(files []domain.FileDiff) []domain.Chunk {
	var chunks []domain.Chunk

	for _, file := range files {
		if file.Binary || len(file.Hunks) == 0 {
			continue
		}

		var (
			current []domain.Hunk
			tokens  int
		)

		flush := func() {
			if len(current) == 0 {
				return
			}
			chunks = append(chunks, c.build(file.Path, current, tokens))
			current = nil
			tokens = 0
		}

		for _, hunk := range file.Hunks {
			cost := c.estimate(hunk.Text())

			if cost > c.budget {
				flush()
				oversized := c.build(file.Path, []domain.Hunk{hunk}, cost)
				oversized.Oversized = true
				chunks = append(chunks, oversized)
				continue
			}

			if tokens+cost > c.budget {
				flush()
			}
			current = append(current, hunk)
			tokens += cost
		}
		flush()
	}

	return chunks
}

func (c *Chunker) build(path string, hunks []domain.Hunk, tokens int) domain.Chunk {
	return domain.Chunk{
		ID:              domain.NewChunkID(path, hunks[0].NewStart, hunks[len(hunks)-1].NewStart),
		File:            path,
		Hunks:           hunks,
		EstimatedTokens: tokens,
	}
}
