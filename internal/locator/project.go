package locator

import (
	"sort"

	"ragspan/internal/domain"
)

// Project maps the logical range [start, end) onto physical spans.
// PDF words on the same page line are merged into one span whose box is the
// union of the word boxes; text lines are clipped to the range.
func Project(entries []domain.SpanEntry, start, end int) []domain.Span {
	if start >= end {
		return nil
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].End > start })

	var out []domain.Span
	for ; i < len(entries) && entries[i].Start < end; i++ {
		e := entries[i]
		s := e.Span
		switch s.Kind {
		case domain.SpanLines:
			lo := max(start, e.Start) - e.Start
			hi := min(end, e.End) - e.Start
			s.ColStart = min(lo, s.ColEnd)
			s.ColEnd = min(hi, s.ColEnd)
			if s.ColStart == s.ColEnd {
				continue
			}
			out = append(out, s)
		default:
			if n := len(out); n > 0 && out[n-1].Page == s.Page && out[n-1].Line == s.Line {
				out[n-1].Box = unionBox(out[n-1].Box, s.Box)
				continue
			}
			s.Box = unionBox(nil, s.Box)
			out = append(out, s)
		}
	}
	return out
}

func unionBox(a, b *domain.BoundingBox) *domain.BoundingBox {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		c := *b
		return &c
	case b == nil:
		return a
	}
	u := a.Union(*b)
	return &u
}
