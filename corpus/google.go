package corpus

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	factchecktools "google.golang.org/api/factchecktools/v1alpha1"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// GoogleConfig selects how Google API clients authenticate. An API key wins; otherwise
// UseADC loads Application Default Credentials.
type GoogleConfig struct {
	APIKey string
	UseADC bool
	// Scopes requested with ADC. Defaults to cloud-platform.
	Scopes []string
}

func (c GoogleConfig) clientOptions(ctx context.Context) ([]option.ClientOption, error) {
	if c.APIKey != "" {
		return []option.ClientOption{option.WithAPIKey(c.APIKey)}, nil
	}
	if !c.UseADC {
		return nil, errors.New("google api: no API key and ADC disabled")
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/cloud-platform"}
	}
	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("google api: default credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

// GoogleFactCheck searches the Google Fact Check Tools claims index.
type GoogleFactCheck struct {
	svc          *factchecktools.Service
	languageCode string
	pageSize     int64
}

// NewGoogleFactCheck creates the claims search client.
func NewGoogleFactCheck(ctx context.Context, cfg GoogleConfig) (*GoogleFactCheck, error) {
	opts, err := cfg.clientOptions(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := factchecktools.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fact check client: %w", err)
	}
	return &GoogleFactCheck{svc: svc, languageCode: "en", pageSize: 10}, nil
}

func (g *GoogleFactCheck) Name() string { return "Google Fact Check" }

func (g *GoogleFactCheck) Search(ctx context.Context, query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	resp, err := g.svc.Claims.Search().
		Query(query).
		LanguageCode(g.languageCode).
		PageSize(g.pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("claims search: %w", err)
	}
	return claimsToMatches(resp.Claims), nil
}

func claimsToMatches(claims []*factchecktools.GoogleFactcheckingFactchecktoolsV1alpha1Claim) []Match {
	var out []Match
	for _, claim := range claims {
		if claim == nil {
			continue
		}
		for _, review := range claim.ClaimReview {
			if review == nil {
				continue
			}
			publisher := ""
			if review.Publisher != nil {
				publisher = review.Publisher.Name
				if publisher == "" {
					publisher = review.Publisher.Site
				}
			}
			out = append(out, Match{
				Claim:     claim.Text,
				Publisher: publisher,
				URL:       review.Url,
				Rating:    review.TextualRating,
				Verdict:   Classify(review.TextualRating),
			})
		}
	}
	return out
}

// VisionOCR extracts text from images with Cloud Vision TEXT_DETECTION.
type VisionOCR struct {
	svc *vision.Service
}

// NewVisionOCR creates the Vision client.
func NewVisionOCR(ctx context.Context, cfg GoogleConfig) (*VisionOCR, error) {
	opts, err := cfg.clientOptions(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionOCR{svc: svc}, nil
}

func (v *VisionOCR) ExtractText(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "TEXT_DETECTION"}},
		}},
	}
	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("vision annotate: %s", r.Error.Message)
	}
	if r.FullTextAnnotation != nil {
		return strings.TrimSpace(r.FullTextAnnotation.Text), nil
	}
	return "", nil
}
