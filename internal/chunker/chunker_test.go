package chunker

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragspan/internal/domain"
	"ragspan/internal/locator"
)

func extract(t *testing.T, text string) (domain.Document, domain.Extraction) {
	t.Helper()
	ex, err := locator.New(nil).Locate(context.Background(), []byte(text), domain.FormatText)
	require.NoError(t, err)
	return domain.Document{ID: "doc-1", Format: domain.FormatText}, ex
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		ok      bool
	}{
		{"defaults", DefaultTargetSize, DefaultOverlap, true},
		{"no overlap", 10, 0, true},
		{"overlap one below size", 10, 9, true},
		{"zero size", 0, 0, false},
		{"negative overlap", 10, -1, false},
		{"overlap equals size", 10, 10, false},
		{"overlap exceeds size", 10, 15, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.size, tc.overlap)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.size, c.TargetSize())
				assert.Equal(t, tc.overlap, c.Overlap())
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Nil(t, c)
		})
	}
}

func TestChunk_TwoPageExample(t *testing.T) {
	text := strings.Repeat("x", 499) + "\f" + strings.Repeat("y", 500)
	require.Equal(t, 1000, len(text))

	c, err := New(400, 50)
	require.NoError(t, err)
	doc, ex := extract(t, text)

	chunks, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	want := [][2]int{{0, 400}, {350, 750}, {700, 1000}}
	for i, w := range want {
		assert.Equal(t, w[0], chunks[i].Start, "chunk %d start", i)
		assert.Equal(t, w[1], chunks[i].End, "chunk %d end", i)
		assert.Equal(t, i, chunks[i].Ordinal)
		assert.Equal(t, text[w[0]:w[1]], chunks[i].Text)
	}
	assert.Less(t, len(chunks[2].Text), 400)
}

func TestChunk_PrefersParagraphThenSentence(t *testing.T) {
	c, err := New(20, 2)
	require.NoError(t, err)

	doc, ex := extract(t, "Alpha beta.\n\nGamma delta epsilon zeta")
	chunks, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	assert.Equal(t, "Alpha beta.\n\n", chunks[0].Text)

	c, err = New(20, 5)
	require.NoError(t, err)
	doc, ex = extract(t, "One two three. Four five six. Seven eight nine.")
	chunks, err = c.Chunk(doc, ex)
	require.NoError(t, err)
	assert.Equal(t, "One two three. ", chunks[0].Text)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.End-ch.Start, 20)
	}
}

func TestChunk_LongSentenceFallsBackToHardCut(t *testing.T) {
	c, err := New(30, 5)
	require.NoError(t, err)
	doc, ex := extract(t, strings.Repeat("word ", 30))

	chunks, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	assert.Equal(t, 30, chunks[0].End)
	assert.Equal(t, 25, chunks[1].Start)
}

func TestChunk_CarriesSpans(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	doc, ex := extract(t, "abcdefgh\nijklmnop\n")

	chunks, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Len(t, chunks[0].Spans, 2)
	assert.Equal(t, domain.Span{Kind: domain.SpanLines, Line: 0, ColStart: 0, ColEnd: 8}, chunks[0].Spans[0])
	assert.Equal(t, domain.Span{Kind: domain.SpanLines, Line: 1, ColStart: 0, ColEnd: 1}, chunks[0].Spans[1])
}

func TestChunk_EmptyExtraction(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	chunks, err := c.Chunk(domain.Document{ID: "d"}, domain.Extraction{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// Chunks minus their declared overlap must rebuild the text with no gaps.
func TestChunk_CoverageReconstructsText(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pieces := []string{"alpha", "beta", "gamma", "délta", "ω", ".", "!", "?", " ", " ", "\n", "\n\n"}

	for round := 0; round < 50; round++ {
		var b strings.Builder
		for i := 0; i < 50+rng.Intn(400); i++ {
			b.WriteString(pieces[rng.Intn(len(pieces))])
		}
		text := "start " + b.String()
		size := 5 + rng.Intn(60)
		overlap := rng.Intn(size)

		c, err := New(size, overlap)
		require.NoError(t, err)
		doc, ex := extract(t, text)
		chunks, err := c.Chunk(doc, ex)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		var rebuilt strings.Builder
		prevEnd := 0
		for i, ch := range chunks {
			require.NotEmpty(t, ch.Text)
			require.LessOrEqual(t, ch.End-ch.Start, size)
			require.Equal(t, utf8.RuneCountInString(ch.Text), ch.End-ch.Start)
			if i == 0 {
				require.Equal(t, 0, ch.Start)
			} else {
				require.Equal(t, overlap, prevEnd-ch.Start, "round %d chunk %d", round, i)
			}
			rebuilt.WriteString(string([]rune(ch.Text)[prevEnd-ch.Start:]))
			prevEnd = ch.End
		}
		assert.Equal(t, text, rebuilt.String(), "round %d (size=%d overlap=%d)", round, size, overlap)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	doc, ex := extract(t, text)

	first, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	second, err := c.Chunk(doc, ex)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, ch := range first {
		assert.Len(t, ch.ID, 32)
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
}

func TestID(t *testing.T) {
	assert.Equal(t, ID("doc", 0, 10), ID("doc", 0, 10))
	assert.NotEqual(t, ID("doc", 0, 10), ID("doc", 0, 11))
	assert.NotEqual(t, ID("doc", 0, 10), ID("other", 0, 10))
}
