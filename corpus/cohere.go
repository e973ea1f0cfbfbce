package corpus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

const (
	// DefaultCohereModel is used when no embed-* model is configured.
	DefaultCohereModel = "embed-english-v3.0"
	// CohereMinSimilarity is the cosine similarity a feed item needs under embeddings.
	CohereMinSimilarity float32 = 0.5
)

// CohereMatcher scores relatedness as cosine similarity of Cohere embeddings.
// Docs: https://docs.cohere.com/reference/embed
type CohereMatcher struct {
	client *cohereclient.Client
	model  string
}

// NewCohereMatcher builds a matcher for apiKey. The HTTP client forces HTTP/1.1 to avoid
// HTTP/2 stream resets seen against the embed endpoint.
func NewCohereMatcher(apiKey, model string) *CohereMatcher {
	if model == "" || !strings.HasPrefix(model, "embed-") {
		model = DefaultCohereModel
	}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereMatcher{client: client, model: model}
}

func (c *CohereMatcher) Similarity(ctx context.Context, query string, candidates []string) ([]float32, error) {
	if len(candidates) == 0 {
		return []float32{}, nil
	}

	vectors, err := c.embed(ctx, append([]string{query}, candidates...))
	if err != nil {
		return nil, err
	}

	out := make([]float32, len(candidates))
	for i := range candidates {
		out[i] = cosine(vectors[0], vectors[i+1])
	}
	return out, nil
}

func (c *CohereMatcher) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.V2.Embed(
		ctx,
		&cohere.V2EmbedRequest{
			Texts:          texts,
			Model:          c.model,
			InputType:      cohere.EmbedInputTypeSearchDocument,
			EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("cohere embed error: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	floats := resp.Embeddings.Float
	if len(floats) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}

	out := make([][]float32, len(floats))
	for i, vec := range floats {
		fv := make([]float32, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		out[i] = fv
	}
	return out, nil
}
