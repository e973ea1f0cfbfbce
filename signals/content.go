package signals

import (
	"context"
	"fmt"
	"strings"

	"honestlens/types"
)

// Content score deltas. A text starts at baseScore and every matched category moves it by
// a fixed amount; the result is clamped to [0,100].
const (
	sensationalPenalty = 5  // per sensational term
	clickbaitPenalty   = 10 // per clickbait pattern
	urgencyPenalty     = 7  // per urgency term
	emotionalPenalty   = 6  // per emotional term
	maxPatternPenalty  = 60

	dateBonus       = 10
	figureBonus     = 8
	quoteBonus      = 5
	officialBonus   = 15
	structureBonus  = 5 // average sentence length inside (15, 30) words
	vaguePenalty    = 10
	absolutePenalty = 8
	// cleanBonus applies to non-empty text that matched no penalized category
	cleanBonus = 10

	// sensationalFlagThreshold is the term count that raises the sensational flag
	sensationalFlagThreshold = 3
)

// TextAnalysis is the breakdown behind a content score.
type TextAnalysis struct {
	Sensational []string
	Clickbait   int
	Urgency     []string
	Emotional   []string

	HasDates       bool
	HasFigures     bool
	HasQuotes      bool
	HasOfficials   bool
	HasVague       bool
	HasAbsolutes   bool
	WellStructured bool
	Clean          bool

	Score int
}

// AnalyzeText applies the lexical rules to text. Empty text scores baseScore.
func AnalyzeText(text string) TextAnalysis {
	normalized := normalizeText(text)
	a := TextAnalysis{
		Sensational: matchTerms(normalized, sensationalTerms),
		Urgency:     matchTerms(normalized, urgencyTerms),
		Emotional:   matchTerms(normalized, emotionalTerms),
	}
	for _, p := range clickbaitPatterns {
		if p.MatchString(normalized) {
			a.Clickbait++
		}
	}

	a.HasDates = datePattern.MatchString(normalized)
	a.HasFigures = figurePattern.MatchString(normalized)
	a.HasQuotes = quotePattern.MatchString(normalized)
	a.HasOfficials = officialPattern.MatchString(normalized)
	a.HasVague = vaguePattern.MatchString(normalized)
	a.HasAbsolutes = absolutePattern.MatchString(normalized)

	words := len(strings.Fields(normalized))
	sentences := 0
	for _, s := range sentenceSplitter.Split(normalized, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences > 0 {
		avg := float64(words) / float64(sentences)
		a.WellStructured = avg > 15 && avg < 30
	}

	a.Clean = words > 0 && len(a.Sensational) == 0 && a.Clickbait == 0 && len(a.Urgency) == 0 &&
		len(a.Emotional) == 0 && !a.HasVague && !a.HasAbsolutes
	a.Score = a.score()
	return a
}

func (a TextAnalysis) score() int {
	penalty := len(a.Sensational)*sensationalPenalty +
		a.Clickbait*clickbaitPenalty +
		len(a.Urgency)*urgencyPenalty +
		len(a.Emotional)*emotionalPenalty
	if penalty > maxPatternPenalty {
		penalty = maxPatternPenalty
	}

	score := baseScore - penalty
	if a.HasDates {
		score += dateBonus
	}
	if a.HasFigures {
		score += figureBonus
	}
	if a.HasQuotes {
		score += quoteBonus
	}
	if a.HasOfficials {
		score += officialBonus
	}
	if a.WellStructured {
		score += structureBonus
	}
	if a.Clean {
		score += cleanBonus
	}
	if a.HasVague {
		score -= vaguePenalty
	}
	if a.HasAbsolutes {
		score -= absolutePenalty
	}
	return types.ClampScore(score)
}

// FactualMarkers counts how many verifiable-fact categories matched.
func (a TextAnalysis) FactualMarkers() int {
	n := 0
	for _, ok := range []bool{a.HasDates, a.HasFigures, a.HasQuotes, a.HasOfficials} {
		if ok {
			n++
		}
	}
	return n
}

// Signal renders the analysis as a content signal.
func (a TextAnalysis) Signal() types.Signal {
	sig := types.Signal{Kind: types.SignalContent, Score: a.Score}

	if a.HasOfficials {
		sig.Evidence = append(sig.Evidence, "references official sources")
	}
	if a.HasDates {
		sig.Evidence = append(sig.Evidence, "contains specific dates")
	}
	if a.HasFigures {
		sig.Evidence = append(sig.Evidence, "contains specific figures")
	}
	if a.HasQuotes {
		sig.Evidence = append(sig.Evidence, "includes quoted statements")
	}
	if a.WellStructured {
		sig.Evidence = append(sig.Evidence, "well-structured sentences")
	}
	if a.Clean {
		sig.Evidence = append(sig.Evidence, "no manipulative language")
	}

	switch n := len(a.Sensational); {
	case n >= sensationalFlagThreshold:
		sig.Flags = append(sig.Flags, "contains sensational language")
	case n > 0:
		sig.Flags = append(sig.Flags, fmt.Sprintf("sensational wording: %s", strings.Join(a.Sensational, ", ")))
	}
	if a.Clickbait > 0 {
		sig.Flags = append(sig.Flags, "clickbait phrasing")
	}
	if len(a.Urgency) > 0 {
		sig.Flags = append(sig.Flags, "urgency pressure")
	}
	if len(a.Emotional) > 0 {
		sig.Flags = append(sig.Flags, "emotional manipulation")
	}
	if a.HasVague {
		sig.Flags = append(sig.Flags, "vague attribution")
	}
	if a.HasAbsolutes {
		sig.Flags = append(sig.Flags, "absolute statements")
	}
	return sig
}

// Content scores text on lexical heuristics.
type Content struct{}

// NewContent returns the content collector.
func NewContent() *Content { return &Content{} }

func (c *Content) Kind() types.SignalKind { return types.SignalContent }

func (c *Content) Collect(ctx context.Context, in Input) (types.Signal, error) {
	if err := ctx.Err(); err != nil {
		return types.Signal{}, err
	}
	if strings.TrimSpace(in.Text) == "" {
		return types.Signal{}, types.ErrNoSignal
	}
	return AnalyzeText(in.Text).Signal(), nil
}

func normalizeText(text string) string {
	text = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(text)
	return strings.ToLower(text)
}

func matchTerms(normalized string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if containsWord(normalized, term) {
			found = append(found, term)
		}
	}
	return found
}

// containsWord matches term only on word boundaries, so "secret" does not hit "secretary".
func containsWord(s, term string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if !isWordByte(s, start-1) && !isWordByte(s, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
