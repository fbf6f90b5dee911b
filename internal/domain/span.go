package domain

// SpanKind tells whether a Span points into a paginated or a line-based document.
type SpanKind string

const (
	SpanPage  SpanKind = "page"
	SpanLines SpanKind = "lines"
)

// BoundingBox is a rectangle in PDF user space, origin top-left.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X0: min(b.X0, o.X0),
		Y0: min(b.Y0, o.Y0),
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
	}
}

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// Span is a physical location in the rendered document.
//
// For SpanPage, Page and Line are zero-based page index and line ordinal
// within that page; Box is nil when the extraction backend reported no
// geometry. For SpanLines, Line is the zero-based line index and
// ColStart/ColEnd the character columns, end exclusive.
type Span struct {
	Kind     SpanKind     `json:"kind"`
	Page     int          `json:"page"`
	Line     int          `json:"line"`
	Box      *BoundingBox `json:"box,omitempty"`
	ColStart int          `json:"col_start"`
	ColEnd   int          `json:"col_end"`
}

// SpanEntry maps the logical range [Start, End) to a physical span.
type SpanEntry struct {
	Start int
	End   int
	Span  Span
}

// Extraction is a document's text together with per-character provenance.
// Entries are ordered, non-overlapping and cover the whole text.
type Extraction struct {
	Text    string
	Entries []SpanEntry
}

// Word is a single positioned word reported by a PDF backend.
type Word struct {
	Text string
	Box  *BoundingBox
}

// LineLayout is a visual line of words.
type LineLayout struct {
	Words []Word
}

// PageLayout holds the lines of one page in reading order.
type PageLayout struct {
	Width  float64
	Height float64
	Lines  []LineLayout
}

// Layout is the raw material handed from the extraction backend to the locator.
type Layout struct {
	Pages []PageLayout
}

// RegionKind selects how a highlight should be drawn.
type RegionKind string

const (
	RegionBox  RegionKind = "box"
	RegionPage RegionKind = "page"
	RegionText RegionKind = "text"
)

// Region is one renderable highlight overlay.
type Region struct {
	Kind       RegionKind   `json:"kind"`
	DocumentID string       `json:"document_id"`
	Page       int          `json:"page"`
	Box        *BoundingBox `json:"box,omitempty"`
	Line       int          `json:"line"`
	ColStart   int          `json:"col_start"`
	ColEnd     int          `json:"col_end"`
}
