// Package fusion combines collector signals into one verification result.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"honestlens/config"
	"honestlens/types"
)

// BaseWeights sum to 1.0 over the full signal set.
var BaseWeights = map[types.SignalKind]float64{
	types.SignalContent:        0.40,
	types.SignalSource:         0.30,
	types.SignalCorroboration:  0.25,
	types.SignalImageForensics: 0.05,
}

const (
	// ImageWeight is the share ImageForensics takes on image requests; text-derived
	// signals split the rest in proportion to their base weights.
	ImageWeight = 0.50

	emptyScore      = 50
	emptyConfidence = 10
	baseConfidence  = 60
	perSignalBoost  = 10
	maxConfidence   = 95
	// DegradedConfidenceCap bounds confidence for results from the basic collector set.
	DegradedConfidenceCap = 60

	fallbackWeight = 1.0
)

// Engine fuses signals. The zero value is not usable; call NewEngine.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine stamping results with the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// WithClock replaces the clock used for VerifiedAt.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Fuse builds the result for req from the signals that were collected. Input order does
// not matter.
func (e *Engine) Fuse(req *types.VerificationRequest, signals []types.Signal, method types.Method) *types.VerificationResult {
	result := &types.VerificationResult{
		RequestID:      req.ID,
		Method:         method,
		Evidence:       []string{},
		Flags:          []string{},
		SourcesChecked: []types.SourceRef{},
		VerifiedAt:     e.now().UTC(),
	}

	if len(signals) == 0 {
		result.TruthScore = emptyScore
		result.CredibilityLevel = types.LevelForScore(emptyScore)
		result.ConfidenceScore = emptyConfidence
		result.Flags = append(result.Flags, "no signal collected")
		result.Reasoning = "No signal could be collected, so the score is neutral."
		return result
	}

	ordered := make([]types.Signal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind.Rank() < ordered[j].Kind.Rank()
	})

	weights := Weights(req.Kind, ordered)
	var weighted, total float64
	for i, s := range ordered {
		weighted += float64(types.ClampScore(s.Score)) * weights[i]
		total += weights[i]
	}
	score := emptyScore
	if total > 0 {
		score = int(math.Round(weighted / total))
	}
	result.TruthScore = types.ClampScore(score)
	result.CredibilityLevel = types.LevelForScore(result.TruthScore)
	result.ConfidenceScore = Confidence(len(ordered), method)

	seenFlags := make(map[string]struct{})
	sentences := make([]string, 0, len(ordered))
	for i, s := range ordered {
		for _, ev := range s.Evidence {
			if len(result.Evidence) < config.MaxEvidence {
				result.Evidence = append(result.Evidence, ev)
			}
		}
		for _, f := range s.Flags {
			if _, dup := seenFlags[f]; dup || len(result.Flags) >= config.MaxEvidence {
				continue
			}
			seenFlags[f] = struct{}{}
			result.Flags = append(result.Flags, f)
		}
		for _, src := range s.Sources {
			if len(result.SourcesChecked) >= config.MaxSourcesChecked {
				break
			}
			src.SignalType = s.Kind
			result.SourcesChecked = append(result.SourcesChecked, src)
		}
		share := 0.0
		if total > 0 {
			share = weights[i] / total
		}
		sentences = append(sentences, describe(s, share))
	}
	result.Reasoning = strings.Join(sentences, " ")
	return result
}

// Weights returns the raw weight of each signal, index-aligned with signals.
func Weights(kind types.Kind, signals []types.Signal) []float64 {
	out := make([]float64, len(signals))

	textBase := 0.0
	if kind == types.KindImage {
		for _, s := range signals {
			if s.Kind.TextDerived() {
				textBase += BaseWeights[s.Kind]
			}
		}
	}

	for i, s := range signals {
		base, known := BaseWeights[s.Kind]
		switch {
		case !known:
			out[i] = s.WeightHint
			if out[i] <= 0 {
				out[i] = fallbackWeight
			}
		case kind == types.KindImage && s.Kind == types.SignalImageForensics:
			out[i] = ImageWeight
		case kind == types.KindImage && s.Kind.TextDerived() && textBase > 0:
			out[i] = (1 - ImageWeight) * base / textBase
		default:
			out[i] = base
		}
	}
	return out
}

// Confidence grows with the number of signals and is capped lower in degraded mode.
func Confidence(n int, method types.Method) int {
	if n == 0 {
		return emptyConfidence
	}
	c := min(baseConfidence+perSignalBoost*n, maxConfidence)
	if method == types.MethodDegraded {
		c = min(c, DegradedConfidenceCap)
	}
	return c
}

var signalLabels = map[types.SignalKind]string{
	types.SignalContent:        "Content analysis",
	types.SignalSource:         "Source reputation",
	types.SignalCorroboration:  "Fact-check corroboration",
	types.SignalImageForensics: "Image forensics",
	types.SignalBasic:          "Basic heuristic",
}

func describe(s types.Signal, share float64) string {
	label, ok := signalLabels[s.Kind]
	if !ok {
		label = string(s.Kind)
	}
	detail := "no warning signs"
	if n := len(s.Flags); n > 0 {
		detail = fmt.Sprintf("%d warning sign(s)", n)
	}
	return fmt.Sprintf("%s scored %d/100 with %s (weight %.0f%%).", label, types.ClampScore(s.Score), detail, share*100)
}
