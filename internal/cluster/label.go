package cluster

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Labeler names a cluster from its member keywords.
type Labeler interface {
	Label(ctx context.Context, members []string) (string, error)
}

// BigramLabeler names clusters by their most frequent word bigrams, falling
// back to single words. Ties break lexicographically, so labels are
// deterministic.
type BigramLabeler struct{}

func (BigramLabeler) Label(_ context.Context, members []string) (string, error) {
	return bigramLabel(members), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func topCounts(counts map[string]int, k int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

func bigramLabel(members []string) string {
	grams := make(map[string]int)
	words := make(map[string]int)
	for _, m := range members {
		toks := tokenize(m)
		for _, w := range toks {
			words[w]++
		}
		for i := 0; i+1 < len(toks); i++ {
			grams[toks[i]+" "+toks[i+1]]++
		}
	}

	if len(grams) > 0 {
		return strings.Join(topCounts(grams, 2), " ")
	}
	if len(words) > 0 {
		return strings.Join(topCounts(words, 2), " ")
	}
	return "cluster"
}

// FallbackLabeler tries a primary labeler (e.g. an LLM-backed one) and
// falls back to bigram labels on any failure.
type FallbackLabeler struct {
	Primary Labeler
}

func (f FallbackLabeler) Label(ctx context.Context, members []string) (string, error) {
	if f.Primary != nil {
		label, err := f.Primary.Label(ctx, members)
		if err == nil && strings.TrimSpace(label) != "" {
			return strings.TrimSpace(label), nil
		}
		if err != nil {
			zap.L().Warn("cluster: primary labeler failed, using bigram label", zap.Error(err))
		}
	}
	return bigramLabel(members), nil
}
