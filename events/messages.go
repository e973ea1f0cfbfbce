// Package events moves verification traffic over Kafka: submissions in, results out.
package events

import (
	"time"

	"honestlens/types"
)

// ResultEvent is published to the results topic when a request completes.
type ResultEvent struct {
	RequestID   string                    `json:"requestId"`
	Type        types.Kind                `json:"type"`
	Payload     string                    `json:"payload"`
	Priority    types.Priority            `json:"priority"`
	DedupKey    string                    `json:"dedupKey,omitempty"`
	Result      *types.VerificationResult `json:"result"`
	PublishedAt time.Time                 `json:"publishedAt"`
}

// SubmitMessage is one verification request read from the requests topic.
type SubmitMessage struct {
	Type     string `json:"type"`
	Payload  string `json:"payload"`
	Priority string `json:"priority,omitempty"`
}
