package types

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the type of content a request carries
type Kind string

const (
	KindURL   Kind = "url"
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ParseKind validates a raw kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindURL, KindText, KindImage:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
}

// Priority only affects scheduling outside the pipeline; fusion ignores it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a raw priority string. Empty means medium.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("%w: invalid priority level %q", ErrInvalidInput, s)
	}
}

// State represents the request lifecycle state machine
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StatePending:    {StateProcessing},
	StateProcessing: {StateCompleted, StateFailed},
}

// CanTransition reports whether from -> to is part of the state machine.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CredibilityLevel is the discrete tier derived from a truth score
type CredibilityLevel string

const (
	HighlyCredible   CredibilityLevel = "highly_credible"
	MostlyCredible   CredibilityLevel = "mostly_credible"
	MixedCredibility CredibilityLevel = "mixed_credibility"
	LowCredibility   CredibilityLevel = "low_credibility"
	NotCredible      CredibilityLevel = "not_credible"
)

// LevelForScore maps a truth score onto its tier. Boundaries are inclusive on the low side.
func LevelForScore(score int) CredibilityLevel {
	switch {
	case score >= 85:
		return HighlyCredible
	case score >= 70:
		return MostlyCredible
	case score >= 50:
		return MixedCredibility
	case score >= 30:
		return LowCredibility
	default:
		return NotCredible
	}
}

// Method records which collector set produced a result
type Method string

const (
	MethodNormal   Method = "normal"
	MethodDegraded Method = "degraded"
)

// VerificationRequest is one submission tracked by the lifecycle manager.
type VerificationRequest struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Payload  string   `json:"payload"`
	Content  string   `json:"content,omitempty"`
	Priority Priority `json:"priority"`
	DedupKey string   `json:"dedupKey,omitempty"`
	State    State    `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that callers may hold without racing the manager.
func (r *VerificationRequest) Clone() *VerificationRequest {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// SourceRef is one source consulted while scoring, tagged with the signal that cited it.
type SourceRef struct {
	Name       string     `json:"name"`
	URL        string     `json:"url,omitempty"`
	SignalType SignalKind `json:"signalType"`
}

// VerificationResult is the immutable credibility judgment for a completed request.
type VerificationResult struct {
	RequestID        string           `json:"requestId"`
	TruthScore       int              `json:"truthScore"`
	CredibilityLevel CredibilityLevel `json:"credibilityLevel"`
	ConfidenceScore  int              `json:"confidenceScore"`
	Evidence         []string         `json:"evidence"`
	Flags            []string         `json:"flags"`
	SourcesChecked   []SourceRef      `json:"sourcesChecked"`
	Method           Method           `json:"method"`
	Reasoning        string           `json:"reasoning,omitempty"`
	VerifiedAt       time.Time        `json:"verifiedAt"`
}
