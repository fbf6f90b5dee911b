package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragspan/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "cache", "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestStore_RoundTripIsLossless(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	key := domain.CacheKey{DocumentHash: "doc", ChunkID: "c1", Model: "m1"}
	vec := []float64{0.1, -0.30000000000000004, math.SmallestNonzeroFloat64, math.MaxFloat64, 0}

	require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: key, Vector: vec, CreatedAt: time.Now()}))

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, len(vec))
	for i := range vec {
		assert.Equal(t, math.Float64bits(vec[i]), math.Float64bits(got[i]))
	}
}

func TestStore_Miss(t *testing.T) {
	store := setupTestStore(t)
	_, ok, err := store.Get(context.Background(), domain.CacheKey{DocumentHash: "d", ChunkID: "c", Model: "m"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutKeepsFirstEntry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	key := domain.CacheKey{DocumentHash: "doc", ChunkID: "c1", Model: "m1"}

	require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: key, Vector: []float64{1}}))
	require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: key, Vector: []float64{2, 3}}))

	got, _, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, got)
}

func TestStore_ModelIsPartOfKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a := domain.CacheKey{DocumentHash: "doc", ChunkID: "c1", Model: "m1"}
	b := domain.CacheKey{DocumentHash: "doc", ChunkID: "c1", Model: "m2"}

	require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: a, Vector: []float64{1}}))
	_, ok, err := store.Get(ctx, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PurgeStaleAndClear(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	for i, model := range []string{"old", "old", "new"} {
		key := domain.CacheKey{DocumentHash: "doc", ChunkID: string(rune('a' + i)), Model: model}
		require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: key, Vector: []float64{float64(i)}}))
	}

	n, err := store.PurgeStale(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")
	ctx := context.Background()
	key := domain.CacheKey{DocumentHash: "doc", ChunkID: "c1", Model: "m1"}

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, domain.CacheEntry{Key: key, Vector: []float64{4, 2}}))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{4, 2}, got)
}

func TestDecodeVector_Corrupt(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
