// Package indexer turns document files into chunks and ingests them into the vector store.
package indexer

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/ozlaw/internal/models"
)

// separators are tried in order when choosing where a chunk ends.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

// Chunker splits text into overlapping character windows. Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Overlap is clamped to [0, size-1] so that every window advances.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split returns the chunk texts for text. Each chunk holds at most chunkSize runes and
// starts exactly chunkOverlap runes before the previous chunk ended. Whitespace-only
// input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}
	var out []string
	start := 0
	for {
		end := start + c.chunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		end = c.snap(runes, start, end)
		out = append(out, string(runes[start:end]))
		start = end - c.chunkOverlap
	}
}

// snap moves end back to just after the best separator in the window's tail. The tail
// begins far enough in that the next start (end - overlap) still moves forward.
func (c *Chunker) snap(runes []rune, start, end int) int {
	minEnd := start + c.chunkSize/2
	if m := start + c.chunkOverlap + 1; m > minEnd {
		minEnd = m
	}
	for _, sep := range separators {
		for i := end - len(sep); i >= minEnd-len(sep) && i >= start; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// Chunk splits text into chunks carrying source and chunk_index metadata.
// Each chunk gets a fresh ID; chunking the same text twice yields equal contents
// under different IDs.
func (c *Chunker) Chunk(source, text string) []*models.Chunk {
	parts := c.Split(text)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, &models.Chunk{
			ID:      uuid.New().String(),
			Source:  source,
			Index:   i,
			Content: part,
			Metadata: map[string]string{
				models.MetaSource:     source,
				models.MetaChunkIndex: strconv.Itoa(i),
			},
		})
	}
	return chunks
}
