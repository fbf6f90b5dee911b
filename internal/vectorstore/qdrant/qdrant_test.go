package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragspan/internal/domain"
	"ragspan/internal/index"
	"ragspan/internal/vectorstore"
)

var _ vectorstore.Mirror = (*Mirror)(nil)

type recorded struct {
	method string
	path   string
	apiKey string
	body   map[string]any
}

func fakeQdrant(t *testing.T, deleteStatus int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(deleteStatus)
			return
		}
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New("hashing-v1-2", 2, []index.Entry{{
		Info: domain.DocumentInfo{ID: "doc", Name: "a.txt", Format: domain.FormatText},
		Chunks: []domain.Chunk{
			{ID: "c1", DocumentID: "doc", Text: "hello", Start: 0, End: 5, Embedding: []float64{1, 0},
				Spans: []domain.Span{{Kind: domain.SpanLines, Line: 0, ColEnd: 5}}},
			{ID: "c2", DocumentID: "doc", Ordinal: 1, Text: "world", Start: 5, End: 10, Embedding: []float64{0, 1}},
		},
	}})
	require.NoError(t, err)
	return idx
}

func TestSync_RecreatesCollectionAndUpserts(t *testing.T) {
	srv, calls := fakeQdrant(t, http.StatusOK)
	m := NewMirror(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})

	require.NoError(t, m.Sync(context.Background(), testIndex(t), index.MetricDot))

	got := calls()
	require.Len(t, got, 3)
	assert.Equal(t, http.MethodDelete, got[0].method)
	assert.Equal(t, "/collections/docs", got[0].path)
	assert.Equal(t, "secret", got[0].apiKey)

	assert.Equal(t, http.MethodPut, got[1].method)
	vectors := got[1].body["vectors"].(map[string]any)
	assert.EqualValues(t, 2, vectors["size"])
	assert.Equal(t, "Dot", vectors["distance"])

	assert.Equal(t, "/collections/docs/points", got[2].path)
	points := got[2].body["points"].([]any)
	require.Len(t, points, 2)
	first := points[0].(map[string]any)
	assert.Equal(t, PointID("c1"), first["id"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, "c1", payload["chunk_id"])
	assert.Equal(t, "a.txt", payload["document_name"])
}

func TestSync_EmptyIndexOnlyClears(t *testing.T) {
	srv, calls := fakeQdrant(t, http.StatusNotFound)
	m := NewMirror(Config{URL: srv.URL, Collection: "docs"})

	idx, err := index.New("m", 4, nil)
	require.NoError(t, err)
	require.NoError(t, m.Sync(context.Background(), idx, index.MetricCosine))
	assert.Len(t, calls(), 1)
}

func TestClear_ServerError(t *testing.T) {
	srv, _ := fakeQdrant(t, http.StatusInternalServerError)
	err := NewMirror(Config{URL: srv.URL, Collection: "docs"}).Clear(context.Background())
	assert.Error(t, err)
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("chunk-1")
	assert.Equal(t, a, PointID("chunk-1"))
	assert.NotEqual(t, a, PointID("chunk-2"))
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}
