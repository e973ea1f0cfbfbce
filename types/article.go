package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is a fetched web page reduced to the fields the pipeline scores.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	SiteName    string     `json:"site_name,omitempty"`
	Author      string     `json:"author,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	ContentText string     `json:"content_text"`
	ImageURL    string     `json:"image_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// Body joins the title, excerpt and text the way the scorers expect to read them.
func (a *Article) Body() string {
	if a == nil {
		return ""
	}
	out := a.Title
	if a.Excerpt != "" {
		out += "\n\n" + a.Excerpt
	}
	if a.ContentText != "" {
		out += "\n\n" + a.ContentText
	}
	return out
}

// GenerateID creates a short, stable ID from a URL
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
