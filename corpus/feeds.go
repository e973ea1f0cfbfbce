package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// FeedConfig represents the configuration for a single fact-checker RSS feed
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FeedPresets maps friendly keys to fact-checker feed configurations
var FeedPresets = map[string]FeedConfig{
	"pib": {
		Name: "PIB Fact Check",
		URL:  "https://pib.gov.in/RssMain.aspx?ModId=6&Lang=1",
	},
	"boom": {
		Name: "Boom Live",
		URL:  "https://www.boomlive.in/feed",
	},
	"altnews": {
		Name: "Alt News",
		URL:  "https://www.altnews.in/feed/",
	},
	"factchecker": {
		Name: "FactChecker.in",
		URL:  "https://www.factchecker.in/feed/",
	},
}

// DefaultFeedPresets is used when no presets are configured
var DefaultFeedPresets = []string{"pib", "boom", "altnews", "factchecker"}

// ResolveFeeds turns preset names or raw URLs into feed configs, skipping blanks.
func ResolveFeeds(inputs []string) []FeedConfig {
	if len(inputs) == 0 {
		inputs = DefaultFeedPresets
	}
	out := make([]FeedConfig, 0, len(inputs))
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		if preset, ok := FeedPresets[in]; ok {
			out = append(out, preset)
			continue
		}
		out = append(out, FeedConfig{Name: in, URL: in})
	}
	return out
}

const (
	// DefaultMinSimilarity is the lexical relatedness a feed item needs to count as a match
	DefaultMinSimilarity float32 = 0.15
	defaultMaxMatches            = 5
)

// FeedCorpus searches recent items of fact-checker RSS feeds.
type FeedCorpus struct {
	feeds         []FeedConfig
	matcher       Matcher
	minSimilarity float32
	maxMatches    int
	sanitizer     *bluemonday.Policy
}

// NewFeedCorpus returns a corpus over feeds. A nil matcher uses LexicalMatcher.
func NewFeedCorpus(feeds []FeedConfig, matcher Matcher, minSimilarity float32) *FeedCorpus {
	if matcher == nil {
		matcher = LexicalMatcher{}
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &FeedCorpus{
		feeds:         feeds,
		matcher:       matcher,
		minSimilarity: minSimilarity,
		maxMatches:    defaultMaxMatches,
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

func (f *FeedCorpus) Name() string { return "fact-check feeds" }

type feedItem struct {
	publisher string
	title     string
	link      string
	text      string
	rating    string
}

// Search fetches every feed concurrently and returns the items most related to query.
// It fails only when every feed fails.
func (f *FeedCorpus) Search(ctx context.Context, query string) ([]Match, error) {
	if len(f.feeds) == 0 {
		return nil, errors.New("no fact-check feeds configured")
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items []feedItem
		errs  []error
	)
	for _, feed := range f.feeds {
		wg.Add(1)
		go func(feed FeedConfig) {
			defer wg.Done()
			got, err := f.fetch(ctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			items = append(items, got...)
		}(feed)
	}
	wg.Wait()

	if len(errs) == len(f.feeds) {
		return nil, errors.Join(errs...)
	}
	if len(items) == 0 {
		return nil, nil
	}

	candidates := make([]string, len(items))
	for i, it := range items {
		candidates[i] = it.text
	}
	scores, err := f.matcher.Similarity(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("score feed items: %w", err)
	}

	var matches []Match
	for i, it := range items {
		if scores[i] < f.minSimilarity {
			continue
		}
		matches = append(matches, Match{
			Claim:      it.title,
			Publisher:  it.publisher,
			URL:        it.link,
			Rating:     it.rating,
			Verdict:    Classify(it.rating),
			Similarity: scores[i],
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > f.maxMatches {
		matches = matches[:f.maxMatches]
	}
	return matches, nil
}

func (f *FeedCorpus) fetch(ctx context.Context, cfg FeedConfig) ([]feedItem, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", cfg.Name, err)
	}

	items := make([]feedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}

		// Get description/summary
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		summary = f.sanitizer.Sanitize(summary)

		items = append(items, feedItem{
			publisher: cfg.Name,
			title:     item.Title,
			link:      item.Link,
			text:      item.Title + " " + summary,
			// Fact-checker headlines usually carry the verdict ("Fake: ...", "Fact Check: ... is false").
			rating: item.Title + " " + strings.Join(item.Categories, " "),
		})
	}
	return items, nil
}
