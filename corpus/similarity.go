package corpus

import (
	"context"
	"math"
)

// Matcher scores how related each candidate is to a query, in [0,1].
type Matcher interface {
	Similarity(ctx context.Context, query string, candidates []string) ([]float32, error)
}

// LexicalMatcher is a token Jaccard matcher with no network dependency.
type LexicalMatcher struct{}

func (LexicalMatcher) Similarity(_ context.Context, query string, candidates []string) ([]float32, error) {
	out := make([]float32, len(candidates))
	for i, c := range candidates {
		out[i] = jaccard(query, c)
	}
	return out, nil
}

// NewFeedMatcher picks Cohere embeddings when a key is set and lexical matching
// otherwise, returning the threshold that suits the matcher.
func NewFeedMatcher(cohereAPIKey string) (Matcher, float32) {
	if cohereAPIKey != "" {
		return NewCohereMatcher(cohereAPIKey, ""), CohereMinSimilarity
	}
	return LexicalMatcher{}, DefaultMinSimilarity
}

func jaccard(a, b string) float32 {
	if a == "" || b == "" {
		return 0
	}

	seen := make(map[string]struct{})
	for _, token := range Tokenize(a) {
		seen[token] = struct{}{}
	}
	if len(seen) == 0 {
		return 0
	}

	intersection := 0
	counted := make(map[string]struct{})
	for _, token := range Tokenize(b) {
		if _, ok := counted[token]; ok {
			continue
		}
		counted[token] = struct{}{}
		if _, ok := seen[token]; ok {
			intersection++
		}
	}

	union := len(seen) + len(counted) - intersection
	if union == 0 {
		return 0
	}
	return float32(intersection) / float32(union)
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
