// Package chunker splits document text into overlapping chunks for embedding.
package chunker

import (
	"strings"
	"unicode"

	"github.com/agentcv/agentcv/internal/domain"
)

// Chunker splits text under a size/overlap policy. Cuts prefer paragraph
// breaks, then line breaks, then word boundaries, falling back to a hard cut
// so chunks stay human-readable. Size and overlap are counted in runes.
type Chunker struct {
	policy domain.ChunkPolicy
}

// New creates a chunker for the given policy. An overlap that would stall
// progress (>= size) is clamped to size-1; policy resolution upstream should
// have rejected it already.
func New(policy domain.ChunkPolicy) *Chunker {
	if policy.Overlap >= policy.Size {
		policy.Overlap = policy.Size - 1
	}
	if policy.Overlap < 0 {
		policy.Overlap = 0
	}
	return &Chunker{policy: policy}
}

// Policy returns the effective chunking policy.
func (c *Chunker) Policy() domain.ChunkPolicy { return c.policy }

// Split returns the ordered chunk sequence for text. Each chunk after the
// first repeats the trailing Overlap runes of its predecessor. Empty or
// whitespace-only input yields nil.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	r := []rune(text)
	size := c.policy.Size
	overlap := c.policy.Overlap

	var chunks []string
	start := 0
	for {
		if len(r)-start <= size {
			chunks = append(chunks, string(r[start:]))
			return chunks
		}

		cut := cutPoint(r, start, start+size)
		chunks = append(chunks, string(r[start:cut]))

		next := cut - overlap
		if next <= start {
			// Overlap would reprocess the whole chunk; drop it for this
			// boundary rather than loop.
			next = cut
		}
		start = next
	}
}

// cutPoint picks the cut index in (mid, hi], searching backwards for the
// strongest boundary: a blank line, then a newline, then any whitespace.
// Only the latter half of the window is considered so chunks never shrink
// below half the target size.
func cutPoint(r []rune, lo, hi int) int {
	mid := lo + (hi-lo)/2

	for i := hi; i > mid; i-- {
		if r[i-1] == '\n' && i-2 >= lo && r[i-2] == '\n' {
			return i
		}
	}
	for i := hi; i > mid; i-- {
		if r[i-1] == '\n' {
			return i
		}
	}
	for i := hi; i > mid; i-- {
		if unicode.IsSpace(r[i-1]) {
			return i
		}
	}
	return hi
}
