package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ragspan/internal/domain"
	"ragspan/internal/index"
)

// pointNamespace scopes the deterministic point IDs derived from chunk IDs.
var pointNamespace = uuid.MustParse("6f1d3c52-8e0b-4f5a-9d57-2a4c1b7e9f10")

const upsertBatch = 256

// Mirror is a minimal REST client that copies a built index into a Qdrant
// collection so other tools can query it.
type Mirror struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewMirror(cfg Config) *Mirror {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Mirror{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a chunk ID to the UUID used as its Qdrant point ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Sync replaces the collection's contents with idx.
func (m *Mirror) Sync(ctx context.Context, idx *index.Index, metric index.Metric) error {
	if idx == nil {
		return fmt.Errorf("%w: nil index", domain.ErrInvalidArgument)
	}
	if err := m.Clear(ctx); err != nil {
		return err
	}
	if idx.Len() == 0 {
		return nil
	}
	if err := m.create(ctx, idx.Dimension(), metric); err != nil {
		return err
	}

	names := make(map[string]string)
	for _, d := range idx.Documents() {
		names[d.ID] = d.Name
	}
	chunks := idx.Chunks()
	for lo := 0; lo < len(chunks); lo += upsertBatch {
		batch := chunks[lo:min(lo+upsertBatch, len(chunks))]
		points := make([]map[string]any, len(batch))
		for i, ch := range batch {
			points[i] = map[string]any{
				"id":     PointID(ch.ID),
				"vector": ch.Embedding,
				"payload": map[string]any{
					"chunk_id":      ch.ID,
					"document_id":   ch.DocumentID,
					"document_name": names[ch.DocumentID],
					"ordinal":       ch.Ordinal,
					"start":         ch.Start,
					"end":           ch.End,
					"text":          ch.Text,
					"spans":         ch.Spans,
					"fingerprint":   idx.Fingerprint(),
				},
			}
		}
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", m.url, m.collection)
		if err := m.do(ctx, http.MethodPut, url, map[string]any{"points": points}); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops the collection. A missing collection is not an error.
func (m *Mirror) Clear(ctx context.Context) error {
	err := m.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", m.url, m.collection), nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (m *Mirror) create(ctx context.Context, dimension int, metric index.Metric) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	distance := "Cosine"
	if metric == index.MetricDot {
		distance = "Dot"
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	return m.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", m.url, m.collection), body)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (m *Mirror) do(ctx context.Context, method, url string, body any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if m.apiKey != "" {
		req.Header.Set("api-key", m.apiKey)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	return nil
}
