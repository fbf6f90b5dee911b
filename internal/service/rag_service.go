package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ragspan/internal/domain"
	"ragspan/internal/highlight"
	"ragspan/internal/index"
	"ragspan/internal/indexer"
	"ragspan/internal/search"
	"ragspan/internal/vectorstore"
)

// RAGService is one user session: it owns the current index and answers
// searches against it. A new index becomes visible only once its build
// has finished.
type RAGService struct {
	indexer  *indexer.Indexer
	searcher *search.Searcher
	mirror   vectorstore.Mirror
	metric   index.Metric
	log      zerolog.Logger
	session  string

	build   sync.Mutex
	current atomic.Pointer[index.Index]
}

// Config wires a RAGService. Mirror is optional.
type Config struct {
	Indexer  *indexer.Indexer
	Searcher *search.Searcher
	Mirror   vectorstore.Mirror
	Metric   index.Metric
	Logger   zerolog.Logger
}

func NewRAGService(cfg Config) *RAGService {
	session := uuid.NewString()
	return &RAGService{
		indexer:  cfg.Indexer,
		searcher: cfg.Searcher,
		mirror:   cfg.Mirror,
		metric:   cfg.Metric,
		log:      cfg.Logger.With().Str("session", session).Logger(),
		session:  session,
	}
}

// SessionID identifies this session in logs.
func (s *RAGService) SessionID() string { return s.session }

// Current returns the published index, or nil before the first build.
func (s *RAGService) Current() *index.Index { return s.current.Load() }

// IngestPaths loads the files matched by paths and indexes them.
func (s *RAGService) IngestPaths(ctx context.Context, paths []string) (*domain.Report, error) {
	docs, err := LoadDocuments(paths)
	if err != nil {
		return nil, err
	}
	return s.Index(ctx, docs)
}

// Index builds an index for docs and publishes it. Builds within a session
// run one at a time; on error the previous index stays in place.
func (s *RAGService) Index(ctx context.Context, docs []domain.Document) (*domain.Report, error) {
	s.build.Lock()
	defer s.build.Unlock()

	idx, report, err := s.indexer.BuildIndex(ctx, docs)
	if err != nil {
		return nil, err
	}
	s.current.Store(idx)
	s.log.Info().Str("fingerprint", idx.Fingerprint()).Int("chunks", idx.Len()).Msg("index published")

	if s.mirror != nil {
		if err := s.mirror.Sync(ctx, idx, s.metric); err != nil {
			s.log.Warn().Err(err).Msg("index mirror sync failed")
		}
	}
	return report, nil
}

// Search queries the published index.
func (s *RAGService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	return s.searcher.Search(ctx, s.current.Load(), query, k)
}

// Documents lists the documents of the published index.
func (s *RAGService) Documents() []domain.DocumentInfo {
	idx := s.current.Load()
	if idx == nil {
		return nil
	}
	return idx.Documents()
}

// Chunk looks up a chunk of the published index.
func (s *RAGService) Chunk(chunkID string) (domain.Chunk, error) {
	return lookupChunk(s.current.Load(), chunkID)
}

func lookupChunk(idx *index.Index, chunkID string) (domain.Chunk, error) {
	if idx == nil {
		return domain.Chunk{}, fmt.Errorf("%w: no index has been built", domain.ErrNotFound)
	}
	ch, ok := idx.Chunk(chunkID)
	if !ok {
		return domain.Chunk{}, fmt.Errorf("%w: chunk %s", domain.ErrNotFound, chunkID)
	}
	return ch, nil
}

// Highlight returns the overlay regions of a chunk.
func (s *RAGService) Highlight(chunkID string) ([]domain.Region, error) {
	ch, err := s.Chunk(chunkID)
	if err != nil {
		return nil, err
	}
	return highlight.Highlight(ch), nil
}

// Excerpt returns a chunk marked within contextLines of its surrounding text.
// Chunk and text come from the same snapshot.
func (s *RAGService) Excerpt(chunkID string, contextLines int) (highlight.Excerpt, error) {
	idx := s.current.Load()
	ch, err := lookupChunk(idx, chunkID)
	if err != nil {
		return highlight.Excerpt{}, err
	}
	text, ok := idx.Text(ch.DocumentID)
	if !ok {
		return highlight.Excerpt{Match: ch.Text}, nil
	}
	return highlight.MarkText(text, ch.Start, ch.End, contextLines), nil
}

// BuildContext formats results as numbered, located passages for an answer prompt.
func BuildContext(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s", i+1, r.DocumentName, highlight.Location(r.Chunk), strings.TrimSpace(r.Chunk.Text))
	}
	return b.String()
}
