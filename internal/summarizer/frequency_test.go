package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_KeepsDocumentOrder(t *testing.T) {
	text := "Revenue grew in Europe.\nThe weather was mild.\nEurope revenue drove growth, and revenue beat plans."
	out, err := NewFrequency().Summarize(text, 2)
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew in Europe. Europe revenue drove growth, and revenue beat plans.", out)
}

func TestSummarize_CollapsesWhitespace(t *testing.T) {
	out, err := NewFrequency().Summarize("Line one\ncontinues   here.", 1)
	require.NoError(t, err)
	assert.Equal(t, "Line one continues here.", out)
}

func TestSummarize_NoSentenceBoundaries(t *testing.T) {
	out, err := NewFrequency().Summarize("  just a fragment\nwithout  punctuation ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment without punctuation", out)
}

func TestSummarize_DefaultCount(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. ", 10)
	out, err := NewFrequency().Summarize(text, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSentences, strings.Count(out, "."))
}

func TestSummarize_Deterministic(t *testing.T) {
	s := NewFrequency()
	text := "One fish. Two fish. Red fish. Blue fish. Old fish. New fish."
	first, err := s.Summarize(text, 3)
	require.NoError(t, err)
	for range 5 {
		again, err := s.Summarize(text, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestKeywords_FrequentWordsThenPhrases(t *testing.T) {
	text := "Remote work policy. Remote work requires manager approval. Remote employees work from home."
	assert.Equal(t, []string{"remote", "work", "policy", "remote work"}, NewFrequency().Keywords(text, 4))
}

func TestKeywords_SkipsStopwordsAndShortWords(t *testing.T) {
	kws := NewFrequency().Keywords("The cap is set and the cap has not moved. Budget 2000 applies.", 10)
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "cap")
	assert.NotContains(t, kws, "has")
	assert.Contains(t, kws, "budget")
	assert.Contains(t, kws, "2000")
	assert.Contains(t, kws, "moved")
}

func TestKeywords_DefaultLimitAndEmptyText(t *testing.T) {
	words := make([]string, 0, 30)
	for i := range 30 {
		words = append(words, strings.Repeat(string(rune('a'+i%26)), 4+i/26))
	}
	kws := NewFrequency().Keywords(strings.Join(words, " "), 0)
	assert.Len(t, kws, DefaultKeywords)
	assert.Empty(t, NewFrequency().Keywords("  ", 5))
}
