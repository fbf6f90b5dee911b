// Package highlight turns a chunk's physical spans into renderable overlays.
package highlight

import (
	"fmt"

	"ragspan/internal/domain"
)

// Highlight returns the regions covering chunk.
//
// PDF spans with geometry become one box per page line. Spans without
// geometry collapse to a single page region per page. Text spans become
// line/column regions. It never fails; an unknown span kind is skipped.
func Highlight(chunk domain.Chunk) []domain.Region {
	regions := make([]domain.Region, 0, len(chunk.Spans))
	pages := make(map[int]struct{})
	for _, sp := range chunk.Spans {
		switch sp.Kind {
		case domain.SpanPage:
			if sp.Box != nil {
				b := *sp.Box
				regions = append(regions, domain.Region{
					Kind:       domain.RegionBox,
					DocumentID: chunk.DocumentID,
					Page:       sp.Page,
					Box:        &b,
					Line:       sp.Line,
				})
				continue
			}
			if _, seen := pages[sp.Page]; seen {
				continue
			}
			pages[sp.Page] = struct{}{}
			regions = append(regions, domain.Region{
				Kind:       domain.RegionPage,
				DocumentID: chunk.DocumentID,
				Page:       sp.Page,
			})
		case domain.SpanLines:
			regions = append(regions, domain.Region{
				Kind:       domain.RegionText,
				DocumentID: chunk.DocumentID,
				Line:       sp.Line,
				ColStart:   sp.ColStart,
				ColEnd:     sp.ColEnd,
			})
		}
	}
	return regions
}

// Marker wraps highlighted text for display.
type Marker struct {
	Open  string
	Close string
}

// Excerpt is a chunk rendered within its surrounding lines.
type Excerpt struct {
	Before string
	Match  string
	After  string
}

// String renders the excerpt with m around the match.
func (e Excerpt) String(m Marker) string {
	return e.Before + m.Open + e.Match + m.Close + e.After
}

// MarkText splits text around the character range [start, end) and extends
// the context on each side to contextLines whole lines.
func MarkText(text string, start, end, contextLines int) Excerpt {
	runes := []rune(text)
	start = max(0, min(start, len(runes)))
	end = max(start, min(end, len(runes)))

	from := start
	for n := 0; from > 0; from-- {
		if runes[from-1] == '\n' {
			if n == contextLines {
				break
			}
			n++
		}
	}
	to := end
	for n := 0; to < len(runes); to++ {
		if runes[to] == '\n' {
			if n == contextLines {
				break
			}
			n++
		}
	}
	return Excerpt{
		Before: string(runes[from:start]),
		Match:  string(runes[start:end]),
		After:  string(runes[end:to]),
	}
}

// Location describes where a chunk sits, e.g. "page 2, lines 3-5" or "lines 10-12".
// Pages and lines are reported 1-based.
func Location(chunk domain.Chunk) string {
	if len(chunk.Spans) == 0 {
		return "unknown location"
	}
	first, last := chunk.Spans[0], chunk.Spans[len(chunk.Spans)-1]
	lines := func(a, b int) string {
		if a == b {
			return fmt.Sprintf("line %d", a+1)
		}
		return fmt.Sprintf("lines %d-%d", a+1, b+1)
	}
	if first.Kind == domain.SpanLines {
		return lines(first.Line, last.Line)
	}
	if first.Page == last.Page {
		return fmt.Sprintf("page %d, %s", first.Page+1, lines(first.Line, last.Line))
	}
	return fmt.Sprintf("pages %d-%d", first.Page+1, last.Page+1)
}
