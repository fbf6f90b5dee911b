package domain

import (
	"context"
	"time"
)

// Format identifies how a document's bytes are interpreted.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// Document represents a single uploaded file.
// ID is the hex SHA-256 of Data, so identical bytes share an identity.
type Document struct {
	ID     string
	Name   string
	Format Format
	Data   []byte
}

// Chunk is a contiguous span of a document used for indexing.
// Start and End are character offsets into the extracted text, End exclusive.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	Start      int
	End        int
	Spans      []Span
	Embedding  []float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk         Chunk
	Score         float64
	DocumentName  string
	DocumentOrder int
}

// DocumentInfo describes a document that made it into an index.
// Pages is zero for text documents.
type DocumentInfo struct {
	ID       string
	Name     string
	Format   Format
	Order    int
	Chunks   int
	Pages    int
	Words    int
	Summary  string
	Keywords []string
}

// DocumentFailure records why a document was left out of an index.
type DocumentFailure struct {
	DocumentID string
	Name       string
	Err        error
}

// Report summarises one index build.
type Report struct {
	Indexed   []DocumentInfo
	Failures  []DocumentFailure
	Chunks    int
	CacheHits int
	Computed  int
	Duration  time.Duration
}

// CacheKey addresses one embedding. Model identity is part of the key so
// vectors from different models never mix.
type CacheKey struct {
	DocumentHash string
	ChunkID      string
	Model        string
}

// CacheEntry is a persisted embedding.
type CacheEntry struct {
	Key       CacheKey
	Vector    []float64
	CreatedAt time.Time
}

// Embedder converts free text into a fixed-dimension vector.
// Model returns a stable identity string used in cache keys.
type Embedder interface {
	Model() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Extractor turns raw PDF bytes into a page/line/word layout.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Layout, error)
}

// CacheStore persists embeddings keyed by CacheKey.
type CacheStore interface {
	Get(ctx context.Context, key CacheKey) ([]float64, bool, error)
	Put(ctx context.Context, entry CacheEntry) error
	Clear(ctx context.Context) error
	PurgeStale(ctx context.Context, model string) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// KeywordExtractor picks the most characteristic terms of a text.
type KeywordExtractor interface {
	Keywords(text string, max int) []string
}
