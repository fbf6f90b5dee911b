package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragspan/internal/embedding"
)

func TestEmbed_NormalizedAndDeterministic(t *testing.T) {
	e := New(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Quarterly revenue grew by 12 percent in Europe.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Quarterly revenue grew by 12 percent in Europe.")
	require.NoError(t, err)

	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(embedding.Dot(a, a)), 1e-9)
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	e := New(256)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "revenue growth in europe")
	near, _ := e.Embed(ctx, "European revenue growth was strong; revenue rose.")
	far, _ := e.Embed(ctx, "The cat sat quietly on the warm windowsill.")

	assert.Greater(t, embedding.Dot(q, near), embedding.Dot(q, far))
}

func TestEmbed_StopwordsOnly(t *testing.T) {
	e := New(16)
	vec, err := e.Embed(context.Background(), "the and of to")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 16), vec)
}

func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(16).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModel(t *testing.T) {
	assert.Equal(t, "hashing-v1-512", New(0).Model())
	assert.Equal(t, 512, New(-3).Dimension())
	assert.NotEqual(t, New(128).Model(), New(256).Model())
}
