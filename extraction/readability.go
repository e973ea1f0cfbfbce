// Package extraction turns a URL into the readable text the pipeline scores.
package extraction

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"honestlens/config"
	"honestlens/types"
)

const maxPageBytes = 5 << 20

// Extractor fetches a page and returns its text and metadata.
type Extractor interface {
	Fetch(ctx context.Context, rawURL string) (*types.Article, error)
}

// ReadabilityExtractor extracts the main article of an HTML page.
type ReadabilityExtractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
	sanitizer *bluemonday.Policy
}

// NewReadabilityExtractor returns an extractor with the default timeout. A nil client
// uses a fresh http.Client.
func NewReadabilityExtractor(client *http.Client) *ReadabilityExtractor {
	if client == nil {
		client = &http.Client{Timeout: config.ExtractionTimeout}
	}
	return &ReadabilityExtractor{
		client:    client,
		userAgent: config.ExtractionUserAgent,
		maxChars:  config.MaxExtractedLength,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (e *ReadabilityExtractor) Fetch(ctx context.Context, rawURL string) (*types.Article, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	extracted, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability extraction failed: %w", err)
	}

	text := extracted.TextContent
	if strings.TrimSpace(text) == "" {
		text = html.UnescapeString(e.sanitizer.Sanitize(extracted.Content))
	}

	return &types.Article{
		ID:          types.GenerateID(rawURL),
		Title:       strings.TrimSpace(extracted.Title),
		URL:         rawURL,
		SiteName:    extracted.SiteName,
		Author:      extracted.Byline,
		Excerpt:     collapse(html.UnescapeString(e.sanitizer.Sanitize(extracted.Excerpt))),
		ContentText: truncateRunes(collapse(text), e.maxChars),
		ImageURL:    extracted.Image,
		PublishedAt: extracted.PublishedTime,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
