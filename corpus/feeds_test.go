package corpus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checksFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>checks</title>
<item><title>Fake: vaccines contain microchips</title><link>https://checks.example/1</link><description>&lt;p&gt;Viral claim about vaccines and microchips is false.&lt;/p&gt;</description></item>
<item><title>Vaccines contain microchips, minister says</title><link>https://checks.example/2</link><category>Misleading</category></item>
<item><title>Monsoon session dates announced</title><link>https://checks.example/3</link></item>
</channel></rss>`

const emptyFeed = `<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`

func feedServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/checks":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(checksFeed))
		case "/empty":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(emptyFeed))
		default:
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

// fixedMatcher scores a candidate by the first key it contains.
type fixedMatcher struct {
	scores map[string]float32
	err    error
}

func (f fixedMatcher) Similarity(_ context.Context, _ string, candidates []string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(candidates))
	for i, c := range candidates {
		for key, score := range f.scores {
			if strings.Contains(c, key) {
				out[i] = score
			}
		}
	}
	return out, nil
}

func TestFeedCorpusSearchRanksRelatedItems(t *testing.T) {
	base := feedServer(t)
	fc := NewFeedCorpus([]FeedConfig{{Name: "Checks", URL: base + "/checks"}}, nil, 0)
	assert.Equal(t, "fact-check feeds", fc.Name())

	matches, err := fc.Search(context.Background(), "vaccines contain microchips")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "Vaccines contain microchips, minister says", matches[0].Claim)
	assert.InDelta(t, 0.6, matches[0].Similarity, 1e-6)
	assert.Equal(t, VerdictFalse, matches[0].Verdict)

	assert.Equal(t, "Fake: vaccines contain microchips", matches[1].Claim)
	assert.InDelta(t, 0.3, matches[1].Similarity, 1e-6)
	assert.Equal(t, VerdictFalse, matches[1].Verdict)
	assert.Equal(t, "Checks", matches[1].Publisher)
	assert.Equal(t, "https://checks.example/1", matches[1].URL)
}

func TestFeedCorpusSearchThresholdAndCap(t *testing.T) {
	base := feedServer(t)
	feeds := []FeedConfig{{Name: "Checks", URL: base + "/checks"}}
	matcher := fixedMatcher{scores: map[string]float32{"Fake:": 0.4, "minister": 0.9, "Monsoon": 0.1}}

	fc := NewFeedCorpus(feeds, matcher, 0.2)
	matches, err := fc.Search(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "https://checks.example/2", matches[0].URL)
	assert.Equal(t, "https://checks.example/1", matches[1].URL)

	fc.maxMatches = 1
	matches, err = fc.Search(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "https://checks.example/2", matches[0].URL)
}

func TestFeedCorpusSearchFailures(t *testing.T) {
	base := feedServer(t)
	ctx := context.Background()

	partial := NewFeedCorpus([]FeedConfig{
		{Name: "Checks", URL: base + "/checks"},
		{Name: "Down", URL: base + "/down"},
	}, nil, 0)
	matches, err := partial.Search(ctx, "vaccines contain microchips")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	allDown := NewFeedCorpus([]FeedConfig{
		{Name: "Down", URL: base + "/down"},
		{Name: "Gone", URL: base + "/gone"},
	}, nil, 0)
	_, err = allDown.Search(ctx, "vaccines contain microchips")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Down")
	assert.Contains(t, err.Error(), "Gone")

	empty := NewFeedCorpus([]FeedConfig{{Name: "Empty", URL: base + "/empty"}}, nil, 0)
	matches, err = empty.Search(ctx, "vaccines contain microchips")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = NewFeedCorpus(nil, nil, 0).Search(ctx, "anything")
	assert.Error(t, err)

	broken := NewFeedCorpus([]FeedConfig{{Name: "Checks", URL: base + "/checks"}},
		fixedMatcher{err: errors.New("embed quota exceeded")}, 0)
	_, err = broken.Search(ctx, "anything")
	assert.ErrorContains(t, err, "embed quota exceeded")
}
