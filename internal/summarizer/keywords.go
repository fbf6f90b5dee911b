package summarizer

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultKeywords is used when Keywords is given a non-positive limit.
const DefaultKeywords = 10

var (
	keywordPattern  = regexp.MustCompile(`\p{L}[\p{L}\p{N}]*|\p{N}+(?:\.\p{N}+)?%?`)
	sentenceSplit   = regexp.MustCompile(`[.!?]+`)
	extraStopwords  = []string{"have", "has", "had", "do", "does", "did", "would", "could", "may", "might", "much", "more", "most", "no", "not", "only", "other", "some", "any", "all", "each", "every", "many", "few", "several", "page"}
	minKeywordRunes = 4
	minCompoundLen  = 9
)

// Keywords returns up to limit terms of text: the most frequent single words
// first (ties in order of first appearance), then two-word phrases that
// contain no stopword, in order of first appearance.
func (s *Frequency) Keywords(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultKeywords
	}
	stop := s.keywordStop
	lower := strings.ToLower(text)

	type term struct {
		word  string
		count int
		first int
	}
	var terms []*term
	byWord := map[string]*term{}
	for _, w := range keywordPattern.FindAllString(lower, -1) {
		if _, ok := stop[w]; ok || utf8.RuneCountInString(w) < minKeywordRunes {
			continue
		}
		if t, ok := byWord[w]; ok {
			t.count++
			continue
		}
		t := &term{word: w, count: 1, first: len(terms)}
		byWord[w] = t
		terms = append(terms, t)
	}
	slices.SortStableFunc(terms, func(a, b *term) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.first, b.first)
	})

	singles := limit - limit/4
	out := make([]string, 0, limit)
	seen := map[string]struct{}{}
	for _, t := range terms[:min(singles, len(terms))] {
		out = append(out, t.word)
		seen[t.word] = struct{}{}
	}

	for _, sent := range sentenceSplit.Split(lower, -1) {
		words := s.tokenPattern.FindAllString(sent, -1)
		for i := 0; i+1 < len(words) && len(out) < limit; i++ {
			_, stopA := stop[words[i]]
			_, stopB := stop[words[i+1]]
			if stopA || stopB {
				continue
			}
			phrase := words[i] + " " + words[i+1]
			if len(phrase) < minCompoundLen {
				continue
			}
			if _, dup := seen[phrase]; dup {
				continue
			}
			seen[phrase] = struct{}{}
			out = append(out, phrase)
		}
	}

	// Fewer phrases than slots: top up with the remaining single words.
	for _, t := range terms[min(singles, len(terms)):] {
		if len(out) >= limit {
			break
		}
		out = append(out, t.word)
	}
	return out
}

func keywordStopwords(base map[string]struct{}) map[string]struct{} {
	m := make(map[string]struct{}, len(base)+len(extraStopwords))
	for w := range base {
		m[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		m[w] = struct{}{}
	}
	return m
}
