// Package search ranks indexed chunks against a natural-language query.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ragspan/internal/domain"
	"ragspan/internal/index"
	"ragspan/internal/metrics"
)

// Searcher embeds queries with the same model the index was built with.
type Searcher struct {
	embedder domain.Embedder
	metric   index.Metric
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Searcher)

func WithLogger(l zerolog.Logger) Option { return func(s *Searcher) { s.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Searcher) { s.metrics = m } }

func New(embedder domain.Embedder, metric index.Metric, opts ...Option) *Searcher {
	if metric == "" {
		metric = index.MetricCosine
	}
	s := &Searcher{embedder: embedder, metric: metric, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search returns at most k chunks of idx ordered by similarity to query.
// An empty index yields an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, idx *index.Index, query string, k int) ([]domain.SearchResult, error) {
	started := time.Now()
	res, err := s.search(ctx, idx, query, k)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordSearch(status, len(res), time.Since(started))
	if err != nil {
		s.log.Debug().Err(err).Str("query", query).Msg("search failed")
		return nil, err
	}
	s.log.Debug().Str("query", query).Int("k", k).Int("results", len(res)).Dur("duration", time.Since(started)).Msg("search")
	return res, nil
}

func (s *Searcher) search(ctx context.Context, idx *index.Index, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: no index has been built", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidArgument)
	}
	if m := s.embedder.Model(); m != idx.Model() {
		return nil, &domain.ModelMismatchError{IndexModel: idx.Model(), QueryModel: m}
	}
	if idx.Len() == 0 {
		return []domain.SearchResult{}, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != idx.Dimension() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d", domain.ErrModelMismatch, len(vec), idx.Dimension())
	}
	return idx.Score(vec, k, s.metric), nil
}
