package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragspan/internal/cache"
	"ragspan/internal/cache/memory"
	"ragspan/internal/chunker"
	"ragspan/internal/domain"
	"ragspan/internal/embedding/hashing"
	"ragspan/internal/locator"
	"ragspan/internal/summarizer"
)

// pdfExtractor lays out every line of the payload after the %PDF- header as one PDF line.
type pdfExtractor struct{}

func (pdfExtractor) Extract(_ context.Context, data []byte) (domain.Layout, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return domain.Layout{}, fmt.Errorf("%w: not a PDF", domain.ErrExtraction)
	}
	var page domain.PageLayout
	for i, line := range strings.Split(string(data[len("%PDF-"):]), "\n") {
		var words []domain.Word
		for j, w := range strings.Fields(line) {
			x := float64(j * 50)
			y := float64(i * 12)
			words = append(words, domain.Word{Text: w, Box: &domain.BoundingBox{X0: x, Y0: y, X1: x + 40, Y1: y + 10}})
		}
		page.Lines = append(page.Lines, domain.LineLayout{Words: words})
	}
	return domain.Layout{Pages: []domain.PageLayout{page}}, nil
}

type countingEmbedder struct {
	domain.Embedder
	calls  atomic.Int32
	poison string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	if e.poison != "" && strings.Contains(text, e.poison) {
		return nil, errors.New("model refused input")
	}
	return e.Embedder.Embed(ctx, text)
}

func newTestIndexer(t *testing.T, emb domain.Embedder, store domain.CacheStore) *Indexer {
	t.Helper()
	ch, err := chunker.New(120, 20)
	require.NoError(t, err)
	ix, err := New(Config{
		Locator:          locator.New(pdfExtractor{}),
		Chunker:          ch,
		Cache:            cache.New(store),
		Embedder:         emb,
		Summarizer:       summarizer.NewFrequency(),
		SummarySentences: 1,
		Keywords:         summarizer.NewFrequency(),
		MaxKeywords:      5,
		Workers:          2,
	})
	require.NoError(t, err)
	return ix
}

func textDoc(name, body string) domain.Document {
	return domain.NewDocument(name, []byte(body))
}

var (
	policyText = strings.Repeat("Employees may work remotely two days per week. Managers approve schedules. ", 6)
	budgetText = strings.Repeat("The travel budget is capped at 2000 euros per quarter. Receipts are required. ", 6)
)

func TestBuildIndex_SkipsCorruptDocument(t *testing.T) {
	ix := newTestIndexer(t, &countingEmbedder{Embedder: hashing.New(128)}, memory.NewStore())
	docs := []domain.Document{
		textDoc("policy.txt", policyText),
		{ID: "corrupt", Name: "broken.pdf", Format: domain.FormatPDF, Data: []byte("not a pdf at all")},
		{Name: "budget.pdf", Format: domain.FormatPDF, Data: []byte("%PDF-" + budgetText)},
	}

	idx, report, err := ix.BuildIndex(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, report.Indexed, 2)
	assert.Equal(t, "policy.txt", report.Indexed[0].Name)
	assert.Equal(t, "budget.pdf", report.Indexed[1].Name)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken.pdf", report.Failures[0].Name)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrExtraction)
	assert.Equal(t, idx.Len(), report.Chunks)
	assert.Equal(t, report.Chunks, report.Computed)

	for _, ch := range idx.Chunks() {
		assert.NotEqual(t, "corrupt", ch.DocumentID)
		assert.NotEmpty(t, ch.Spans)
		assert.Len(t, ch.Embedding, 128)
	}
	pdfChunks := 0
	for _, ch := range idx.Chunks() {
		if ch.DocumentID == report.Indexed[1].ID {
			pdfChunks++
			assert.Equal(t, domain.SpanPage, ch.Spans[0].Kind)
			assert.NotNil(t, ch.Spans[0].Box)
		}
	}
	assert.Positive(t, pdfChunks)
	assert.NotEmpty(t, report.Indexed[0].Summary)

	policy, budget := report.Indexed[0], report.Indexed[1]
	assert.Equal(t, 0, policy.Pages)
	assert.Equal(t, 1, budget.Pages)
	assert.Equal(t, len(strings.Fields(policyText)), policy.Words)
	assert.Equal(t, len(strings.Fields(budgetText)), budget.Words)
	require.Len(t, policy.Keywords, 5)
	assert.Contains(t, policy.Keywords, "employees")
	assert.Contains(t, budget.Keywords, "budget")
}

func TestPageCount(t *testing.T) {
	pages := domain.Extraction{Entries: []domain.SpanEntry{
		{Start: 0, End: 3, Span: domain.Span{Kind: domain.SpanPage, Page: 0}},
		{Start: 3, End: 6, Span: domain.Span{Kind: domain.SpanPage, Page: 2}},
	}}
	lines := domain.Extraction{Entries: []domain.SpanEntry{{Start: 0, End: 3, Span: domain.Span{Kind: domain.SpanLines}}}}
	assert.Equal(t, 3, pageCount(pages))
	assert.Equal(t, 0, pageCount(lines))
	assert.Equal(t, 0, pageCount(domain.Extraction{}))
}

func TestBuildIndex_IsIdempotentAndReusesCache(t *testing.T) {
	emb := &countingEmbedder{Embedder: hashing.New(64)}
	ix := newTestIndexer(t, emb, memory.NewStore())
	docs := []domain.Document{textDoc("a.txt", policyText), textDoc("b.txt", budgetText)}

	first, r1, err := ix.BuildIndex(context.Background(), docs)
	require.NoError(t, err)
	calls := emb.calls.Load()
	assert.Equal(t, int32(r1.Chunks), calls)

	second, r2, err := ix.BuildIndex(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, calls, emb.calls.Load(), "second build must not call the embedder")
	assert.Zero(t, r2.Computed)
	assert.Equal(t, r2.Chunks, r2.CacheHits)

	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, first.Chunks(), second.Chunks())
}

func TestBuildIndex_FreshCacheSameResult(t *testing.T) {
	docs := []domain.Document{textDoc("a.txt", policyText)}
	a, _, err := newTestIndexer(t, hashing.New(64), memory.NewStore()).BuildIndex(context.Background(), docs)
	require.NoError(t, err)
	b, _, err := newTestIndexer(t, hashing.New(64), memory.NewStore()).BuildIndex(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, a.Chunks(), b.Chunks())
}

func TestBuildIndex_EmbeddingFailureSkipsOnlyThatDocument(t *testing.T) {
	emb := &countingEmbedder{Embedder: hashing.New(64), poison: "euros"}
	ix := newTestIndexer(t, emb, memory.NewStore())

	idx, report, err := ix.BuildIndex(context.Background(), []domain.Document{
		textDoc("a.txt", policyText),
		textDoc("b.txt", budgetText),
	})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "b.txt", report.Failures[0].Name)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrEmbeddingService)
	require.Len(t, idx.Documents(), 1)
	assert.Equal(t, "a.txt", idx.Documents()[0].Name)
}

func TestBuildIndex_AllDocumentsFail(t *testing.T) {
	ix := newTestIndexer(t, hashing.New(64), memory.NewStore())
	idx, report, err := ix.BuildIndex(context.Background(), []domain.Document{
		{Name: "x.pdf", Format: domain.FormatPDF, Data: []byte("garbage")},
		textDoc("blank.txt", "   \n\n  "),
	})
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Empty(t, report.Indexed)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, idx.Score([]float64{1}, 5, "cosine"))
}

func TestBuildIndex_DeduplicatesByContent(t *testing.T) {
	ix := newTestIndexer(t, hashing.New(64), memory.NewStore())
	idx, report, err := ix.BuildIndex(context.Background(), []domain.Document{
		textDoc("a.txt", policyText),
		textDoc("copy-of-a.txt", policyText),
	})
	require.NoError(t, err)
	require.Len(t, report.Indexed, 1)
	assert.Equal(t, "a.txt", idx.Documents()[0].Name)
}

func TestBuildIndex_EmptyBatch(t *testing.T) {
	ix := newTestIndexer(t, hashing.New(64), memory.NewStore())
	_, _, err := ix.BuildIndex(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBuildIndex_Cancelled(t *testing.T) {
	ix := newTestIndexer(t, hashing.New(64), memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx, report, err := ix.BuildIndex(ctx, []domain.Document{textDoc("a.txt", policyText)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, idx)
	assert.Nil(t, report)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
