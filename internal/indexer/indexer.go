// Package indexer turns a batch of uploaded documents into a searchable index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ragspan/internal/cache"
	"ragspan/internal/chunker"
	"ragspan/internal/domain"
	"ragspan/internal/index"
	"ragspan/internal/metrics"
)

// DefaultWorkers bounds how many documents are processed at once.
const DefaultWorkers = 4

// Locator extracts text with span provenance from raw document bytes.
type Locator interface {
	Locate(ctx context.Context, data []byte, format domain.Format) (domain.Extraction, error)
}

// Config holds the collaborators and tunables of an Indexer.
type Config struct {
	Locator    Locator
	Chunker    *chunker.Chunker
	Cache      *cache.Cache
	Embedder   domain.Embedder
	Summarizer domain.Summarizer // optional
	// SummarySentences is the summary length; summaries are skipped when <= 0.
	SummarySentences int
	Keywords         domain.KeywordExtractor // optional
	// MaxKeywords bounds the keyword list; keywords are skipped when <= 0.
	MaxKeywords int
	Workers     int
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// Indexer builds indexes. It holds no per-batch state and may be shared.
type Indexer struct {
	cfg Config
}

func New(cfg Config) (*Indexer, error) {
	if cfg.Locator == nil || cfg.Chunker == nil || cfg.Cache == nil || cfg.Embedder == nil {
		return nil, errors.New("indexer: locator, chunker, cache and embedder are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Indexer{cfg: cfg}, nil
}

// Model returns the embedding model identity indexes are built with.
func (ix *Indexer) Model() string { return ix.cfg.Embedder.Model() }

type outcome struct {
	entry    index.Entry
	err      error
	hits     int
	computed int
}

// BuildIndex indexes docs and returns the new index with a per-document report.
// Documents that fail are reported and left out; only cancellation or an
// empty batch fail the whole call.
func (ix *Indexer) BuildIndex(ctx context.Context, docs []domain.Document) (*index.Index, *domain.Report, error) {
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%w: no documents to index", domain.ErrInvalidArgument)
	}
	started := time.Now()
	docs = dedupe(docs)
	model := ix.cfg.Embedder.Model()
	log := ix.cfg.Logger.With().Str("model", model).Int("documents", len(docs)).Logger()
	log.Info().Msg("index build started")

	outcomes := make([]outcome, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(ix.cfg.Workers)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = ix.processDocument(ctx, doc, model)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		ix.cfg.Metrics.RecordIndexBuild("cancelled", 0, 0, 0, time.Since(started))
		log.Warn().Err(err).Msg("index build cancelled")
		return nil, nil, err
	}

	report := &domain.Report{}
	entries := make([]index.Entry, 0, len(docs))
	for i, o := range outcomes {
		report.CacheHits += o.hits
		report.Computed += o.computed
		if o.err != nil {
			report.Failures = append(report.Failures, domain.DocumentFailure{DocumentID: docs[i].ID, Name: docs[i].Name, Err: o.err})
			log.Warn().Err(o.err).Str("document", docs[i].Name).Msg("document skipped")
			continue
		}
		entries = append(entries, o.entry)
	}

	idx, err := index.New(model, ix.cfg.Embedder.Dimension(), entries)
	if err != nil {
		ix.cfg.Metrics.RecordIndexBuild("error", 0, len(docs), 0, time.Since(started))
		return nil, nil, fmt.Errorf("assemble index: %w", err)
	}
	report.Indexed = idx.Documents()
	report.Chunks = idx.Len()
	report.Duration = time.Since(started)

	ix.cfg.Metrics.RecordIndexBuild("ok", len(report.Indexed), len(report.Failures), report.Chunks, report.Duration)
	log.Info().
		Int("indexed", len(report.Indexed)).
		Int("failed", len(report.Failures)).
		Int("chunks", report.Chunks).
		Int("cache_hits", report.CacheHits).
		Int("computed", report.Computed).
		Dur("duration", report.Duration).
		Msg("index build finished")
	return idx, report, nil
}

func (ix *Indexer) processDocument(ctx context.Context, doc domain.Document, model string) outcome {
	ex, err := ix.cfg.Locator.Locate(ctx, doc.Data, doc.Format)
	if err != nil {
		return outcome{err: err}
	}
	chunks, err := ix.cfg.Chunker.Chunk(doc, ex)
	if err != nil {
		return outcome{err: err}
	}

	var o outcome
	for i := range chunks {
		text := chunks[i].Text
		key := domain.CacheKey{DocumentHash: doc.ID, ChunkID: chunks[i].ID, Model: model}
		vec, computed, err := ix.cfg.Cache.Fetch(ctx, key, func(ctx context.Context) ([]float64, error) {
			return ix.cfg.Embedder.Embed(ctx, text)
		})
		if err != nil {
			o.err = fmt.Errorf("embed chunk %d of %s: %w", i, doc.Name, err)
			return o
		}
		if computed {
			o.computed++
		} else {
			o.hits++
		}
		chunks[i].Embedding = vec
	}

	info := domain.DocumentInfo{
		ID:     doc.ID,
		Name:   doc.Name,
		Format: doc.Format,
		Pages:  pageCount(ex),
		Words:  len(strings.Fields(ex.Text)),
	}
	if ix.cfg.Keywords != nil && ix.cfg.MaxKeywords > 0 {
		info.Keywords = ix.cfg.Keywords.Keywords(ex.Text, ix.cfg.MaxKeywords)
	}
	if ix.cfg.Summarizer != nil && ix.cfg.SummarySentences > 0 {
		summary, err := ix.cfg.Summarizer.Summarize(ex.Text, ix.cfg.SummarySentences)
		if err != nil {
			ix.cfg.Logger.Debug().Err(err).Str("document", doc.Name).Msg("summary skipped")
		} else {
			info.Summary = summary
		}
	}
	o.entry = index.Entry{Info: info, Text: ex.Text, Chunks: chunks}
	return o
}

// pageCount is the number of pages up to the last one carrying text.
func pageCount(ex domain.Extraction) int {
	n := len(ex.Entries)
	if n == 0 || ex.Entries[n-1].Span.Kind != domain.SpanPage {
		return 0
	}
	return ex.Entries[n-1].Span.Page + 1
}

// dedupe keeps the first document for each ID, filling in missing IDs from content.
func dedupe(docs []domain.Document) []domain.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			d.ID = domain.ContentHash(d.Data)
		}
		if d.Format == "" {
			d.Format = domain.FormatFromName(d.Name)
		}
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}
