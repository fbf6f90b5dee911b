// Package chunker splits extracted text into overlapping character windows.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode"

	"ragspan/internal/domain"
	"ragspan/internal/locator"
)

const (
	DefaultTargetSize = 400
	DefaultOverlap    = 50
)

// Chunker splits text into windows of at most targetSize characters.
// Neighbouring windows share exactly overlap characters.
type Chunker struct {
	targetSize int
	overlap    int
}

// New validates the window parameters.
func New(targetSize, overlap int) (*Chunker, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("%w: target size must be > 0, got %d", domain.ErrInvalidArgument, targetSize)
	}
	if overlap < 0 || overlap >= targetSize {
		return nil, fmt.Errorf("%w: overlap must be >= 0 and < target size, got %d", domain.ErrInvalidArgument, overlap)
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}, nil
}

// TargetSize returns the maximum chunk length in characters.
func (c *Chunker) TargetSize() int { return c.targetSize }

// Overlap returns the number of characters shared by neighbouring chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk cuts the extraction into unembedded chunks carrying their physical spans.
// Cuts prefer paragraph breaks, then sentence ends, then fall back to a hard cut.
func (c *Chunker) Chunk(doc domain.Document, ex domain.Extraction) ([]domain.Chunk, error) {
	runes := []rune(ex.Text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, 0, n/(c.targetSize-c.overlap)+1)
	start := 0
	for {
		end := min(start+c.targetSize, n)
		if end < n {
			end = c.cut(runes, start, end)
		}
		chunks = append(chunks, domain.Chunk{
			ID:         ID(doc.ID, start, end),
			DocumentID: doc.ID,
			Ordinal:    len(chunks),
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
			Spans:      locator.Project(ex.Entries, start, end),
		})
		if end >= n {
			break
		}
		start = end - c.overlap
	}
	return chunks, nil
}

// cut picks the end of the window starting at start. The result is never
// below floor, which keeps chunks reasonably full and guarantees progress.
func (c *Chunker) cut(runes []rune, start, hardEnd int) int {
	floor := max(start+c.targetSize/2, start+c.overlap+1)
	for p := hardEnd; p >= floor && p >= 2; p-- {
		if runes[p-1] == '\n' && runes[p-2] == '\n' {
			return p
		}
	}
	for p := hardEnd; p >= floor && p >= 2; p-- {
		if unicode.IsSpace(runes[p-1]) && isSentenceEnd(runes[p-2]) {
			return p
		}
	}
	return hardEnd
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// ID derives a chunk identity from its document and offset range.
func ID(documentID string, start, end int) string {
	h := sha256.Sum256([]byte(documentID + ":" + strconv.Itoa(start) + "-" + strconv.Itoa(end)))
	return hex.EncodeToString(h[:16])
}
