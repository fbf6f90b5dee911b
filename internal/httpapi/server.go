// Package httpapi exposes a session over a small JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ragspan/internal/domain"
	"ragspan/internal/highlight"
	"ragspan/internal/metrics"
	"ragspan/internal/service"
)

const maxUploadBytes = 64 << 20

// Session is the subset of the service the API needs.
type Session interface {
	Index(ctx context.Context, docs []domain.Document) (*domain.Report, error)
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Documents() []domain.DocumentInfo
	Highlight(chunkID string) ([]domain.Region, error)
	Excerpt(chunkID string, contextLines int) (highlight.Excerpt, error)
}

// Server serves the API.
type Server struct {
	session Session
	topK    int
	log     zerolog.Logger
	server  *http.Server
}

func New(addr string, session Session, topK int, m *metrics.Metrics, log zerolog.Logger) *Server {
	s := &Server{session: session, topK: topK, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /documents", s.handleDocuments)
	mux.HandleFunc("POST /documents", s.handleUpload)
	mux.HandleFunc("GET /chunks/{id}/highlight", s.handleHighlight)
	mux.Handle("GET /metrics", m.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http api shutting down")
	return s.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type resultResponse struct {
	ChunkID      string          `json:"chunk_id"`
	DocumentID   string          `json:"document_id"`
	DocumentName string          `json:"document_name"`
	Score        float64         `json:"score"`
	Start        int             `json:"start"`
	End          int             `json:"end"`
	Location     string          `json:"location"`
	Text         string          `json:"text"`
	Regions      []domain.Region `json:"regions"`
}

type documentResponse struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Format   domain.Format `json:"format"`
	Chunks   int           `json:"chunks"`
	Pages    int           `json:"pages,omitempty"`
	Words    int           `json:"words"`
	Summary  string        `json:"summary,omitempty"`
	Keywords []string      `json:"keywords,omitempty"`
}

type failureResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

type reportResponse struct {
	Indexed   []documentResponse `json:"indexed"`
	Failures  []failureResponse  `json:"failures"`
	Chunks    int                `json:"chunks"`
	CacheHits int                `json:"cache_hits"`
	Computed  int                `json:"computed"`
	Duration  string             `json:"duration"`
}

type highlightResponse struct {
	ChunkID string          `json:"chunk_id"`
	Regions []domain.Region `json:"regions"`
	Before  string          `json:"before"`
	Match   string          `json:"match"`
	After   string          `json:"after"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrModelMismatch):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingService):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	k := s.topK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "k must be an integer"})
			return
		}
		k = n
	}
	results, err := s.session.Search(r.Context(), r.URL.Query().Get("q"), k)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]resultResponse, len(results))
	for i, res := range results {
		out[i] = resultResponse{
			ChunkID:      res.Chunk.ID,
			DocumentID:   res.Chunk.DocumentID,
			DocumentName: res.DocumentName,
			Score:        res.Score,
			Start:        res.Chunk.Start,
			End:          res.Chunk.End,
			Location:     highlight.Location(res.Chunk),
			Text:         res.Chunk.Text,
			Regions:      highlight.Highlight(res.Chunk),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDocuments(w http.ResponseWriter, _ *http.Request) {
	docs := s.session.Documents()
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = toDocument(d)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleUpload indexes the files of a multipart form (field "files") as a new document set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart body"})
		return
	}
	var docs []domain.Document
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, err)
			return
		}
		docs = append(docs, domain.NewDocument(fh.Filename, data))
	}
	report, err := s.session.Index(r.Context(), docs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReport(report))
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	regions, err := s.session.Highlight(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	lines := 1
	if raw := r.URL.Query().Get("context"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			lines = n
		}
	}
	ex, err := s.session.Excerpt(id, lines)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, highlightResponse{ChunkID: id, Regions: regions, Before: ex.Before, Match: ex.Match, After: ex.After})
}

func toDocument(d domain.DocumentInfo) documentResponse {
	return documentResponse{
		ID:       d.ID,
		Name:     d.Name,
		Format:   d.Format,
		Chunks:   d.Chunks,
		Pages:    d.Pages,
		Words:    d.Words,
		Summary:  d.Summary,
		Keywords: d.Keywords,
	}
}

func toReport(r *domain.Report) reportResponse {
	out := reportResponse{
		Indexed:   make([]documentResponse, len(r.Indexed)),
		Failures:  make([]failureResponse, len(r.Failures)),
		Chunks:    r.Chunks,
		CacheHits: r.CacheHits,
		Computed:  r.Computed,
		Duration:  r.Duration.String(),
	}
	for i, d := range r.Indexed {
		out.Indexed[i] = toDocument(d)
	}
	for i, f := range r.Failures {
		out.Failures[i] = failureResponse{DocumentID: f.DocumentID, Name: f.Name, Error: f.Err.Error()}
	}
	return out
}

var _ Session = (*service.RAGService)(nil)
