// Package locator maps a document's extracted text to physical locations:
// page and word box for PDFs, line and column for plain text.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ragspan/internal/domain"
)

// Locator produces an Extraction for a document's raw bytes.
type Locator struct {
	pdf domain.Extractor
}

// New creates a locator. pdf may be nil, in which case PDF documents fail extraction.
func New(pdf domain.Extractor) *Locator {
	return &Locator{pdf: pdf}
}

// Locate extracts text and its per-character provenance.
// Offsets in the result are character (rune) offsets.
func (l *Locator) Locate(ctx context.Context, data []byte, format domain.Format) (domain.Extraction, error) {
	var (
		ex  domain.Extraction
		err error
	)
	switch format {
	case domain.FormatText:
		ex, err = locateText(data)
	case domain.FormatPDF:
		if l.pdf == nil {
			return domain.Extraction{}, fmt.Errorf("%w: no PDF backend configured", domain.ErrExtraction)
		}
		var layout domain.Layout
		layout, err = l.pdf.Extract(ctx, data)
		switch {
		case err == nil:
			ex = locateLayout(layout)
		case !errors.Is(err, domain.ErrExtraction):
			err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
	default:
		return domain.Extraction{}, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidArgument, format)
	}
	if err != nil {
		return domain.Extraction{}, err
	}
	if strings.TrimSpace(ex.Text) == "" {
		return domain.Extraction{}, fmt.Errorf("%w: no extractable text", domain.ErrExtraction)
	}
	return ex, nil
}

func locateText(data []byte) (domain.Extraction, error) {
	if !utf8.Valid(data) {
		return domain.Extraction{}, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrExtraction)
	}
	text := string(data)
	var entries []domain.SpanEntry
	offset := 0
	for i, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		n := utf8.RuneCountInString(line)
		cols := utf8.RuneCountInString(strings.TrimSuffix(line, "\n"))
		entries = append(entries, domain.SpanEntry{
			Start: offset,
			End:   offset + n,
			Span:  domain.Span{Kind: domain.SpanLines, Line: i, ColStart: 0, ColEnd: cols},
		})
		offset += n
	}
	return domain.Extraction{Text: text, Entries: entries}, nil
}

// locateLayout joins words with a space, lines and pages with a newline.
// Each separator belongs to the entry of the word before it.
func locateLayout(layout domain.Layout) domain.Extraction {
	var (
		b       strings.Builder
		entries []domain.SpanEntry
		offset  int
	)
	for p, page := range layout.Pages {
		for li, line := range page.Lines {
			for _, w := range line.Words {
				if w.Text == "" {
					continue
				}
				if n := len(entries); n > 0 {
					sep := " "
					if prev := entries[n-1].Span; prev.Page != p || prev.Line != li {
						sep = "\n"
					}
					b.WriteString(sep)
					offset++
					entries[n-1].End = offset
				}
				b.WriteString(w.Text)
				n := utf8.RuneCountInString(w.Text)
				span := domain.Span{Kind: domain.SpanPage, Page: p, Line: li}
				if w.Box != nil {
					box := *w.Box
					span.Box = &box
				}
				entries = append(entries, domain.SpanEntry{Start: offset, End: offset + n, Span: span})
				offset += n
			}
		}
	}
	return domain.Extraction{Text: b.String(), Entries: entries}
}
