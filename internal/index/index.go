package index

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"

	"ragspan/internal/domain"
	"ragspan/internal/embedding"
)

// Metric selects how query and chunk vectors are compared.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// ParseMetric accepts "cosine", "dot" and the empty string (cosine).
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	}
	return "", fmt.Errorf("%w: unknown similarity metric %q", domain.ErrInvalidArgument, s)
}

// Index is an immutable snapshot of embedded chunks for one document set.
// It is safe for concurrent readers.
type Index struct {
	model       string
	dimension   int
	fingerprint string
	documents   []domain.DocumentInfo
	order       map[string]int
	texts       map[string]string
	chunks      []domain.Chunk
	byID        map[string]int
}

// Entry is one document's contribution to an index.
type Entry struct {
	Info   domain.DocumentInfo
	Text   string
	Chunks []domain.Chunk
}

// New assembles an index. Entries keep their order; every chunk must carry an
// embedding of the same dimension.
func New(model string, dimension int, entries []Entry) (*Index, error) {
	idx := &Index{
		model:     model,
		dimension: dimension,
		order:     make(map[string]int, len(entries)),
		texts:     make(map[string]string, len(entries)),
		byID:      make(map[string]int),
	}
	ids := make([]string, 0, len(entries))
	for i, e := range entries {
		info := e.Info
		info.Order = i
		info.Chunks = len(e.Chunks)
		idx.documents = append(idx.documents, info)
		idx.order[info.ID] = i
		idx.texts[info.ID] = e.Text
		ids = append(ids, info.ID)

		for _, ch := range e.Chunks {
			if len(ch.Embedding) == 0 {
				return nil, fmt.Errorf("chunk %s has no embedding", ch.ID)
			}
			if idx.dimension <= 0 {
				idx.dimension = len(ch.Embedding)
			}
			if len(ch.Embedding) != idx.dimension {
				return nil, fmt.Errorf("chunk %s: vector dimension %d, want %d", ch.ID, len(ch.Embedding), idx.dimension)
			}
			if _, dup := idx.byID[ch.ID]; dup {
				continue
			}
			idx.byID[ch.ID] = len(idx.chunks)
			idx.chunks = append(idx.chunks, ch)
		}
	}
	idx.fingerprint = Fingerprint(model, ids)
	return idx, nil
}

// Fingerprint identifies a model plus an ordered document set.
func Fingerprint(model string, documentIDs []string) string {
	h := sha256.New()
	h.Write([]byte(model))
	for _, id := range documentIDs {
		h.Write([]byte{'\n'})
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (x *Index) Model() string       { return x.model }
func (x *Index) Dimension() int      { return x.dimension }
func (x *Index) Fingerprint() string { return x.fingerprint }
func (x *Index) Len() int            { return len(x.chunks) }

// Documents returns the indexed documents in order.
func (x *Index) Documents() []domain.DocumentInfo { return slices.Clone(x.documents) }

// Chunks returns every chunk in document order.
func (x *Index) Chunks() []domain.Chunk { return slices.Clone(x.chunks) }

// Chunk looks up a chunk by ID.
func (x *Index) Chunk(id string) (domain.Chunk, bool) {
	i, ok := x.byID[id]
	if !ok {
		return domain.Chunk{}, false
	}
	return x.chunks[i], true
}

// Document looks up a document by ID.
func (x *Index) Document(id string) (domain.DocumentInfo, bool) {
	i, ok := x.order[id]
	if !ok {
		return domain.DocumentInfo{}, false
	}
	return x.documents[i], true
}

// Text returns the extracted text of a document, which chunk offsets refer to.
func (x *Index) Text(documentID string) (string, bool) {
	t, ok := x.texts[documentID]
	return t, ok
}

// Score ranks every chunk against query and returns the best k.
// Ties are broken by document order, then by chunk start offset.
func (x *Index) Score(query []float64, k int, metric Metric) []domain.SearchResult {
	if k <= 0 || len(x.chunks) == 0 {
		return []domain.SearchResult{}
	}
	qnorm := math.Sqrt(embedding.Dot(query, query))
	results := make([]domain.SearchResult, len(x.chunks))
	for i, ch := range x.chunks {
		doc := x.documents[x.order[ch.DocumentID]]
		results[i] = domain.SearchResult{
			Chunk:         ch,
			Score:         similarity(metric, query, qnorm, ch.Embedding),
			DocumentName:  doc.Name,
			DocumentOrder: doc.Order,
		}
	}
	slices.SortFunc(results, func(a, b domain.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DocumentOrder, b.DocumentOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Start, b.Chunk.Start)
	})
	return results[:min(k, len(results))]
}

func similarity(metric Metric, q []float64, qnorm float64, v []float64) float64 {
	d := embedding.Dot(q, v)
	if metric == MetricDot {
		return d
	}
	vnorm := math.Sqrt(embedding.Dot(v, v))
	if qnorm == 0 || vnorm == 0 {
		return 0
	}
	return d / (qnorm * vnorm)
}
