// Package corpus provides the external fact-check and news corpora the corroboration
// collector searches for claims related to a piece of content.
package corpus

import (
	"context"
	"strings"
	"unicode"
)

// Verdict is a fact-check rating reduced to three buckets.
type Verdict string

const (
	VerdictFalse   Verdict = "false"
	VerdictTrue    Verdict = "true"
	VerdictUnrated Verdict = "unrated"
)

// Match is one related claim found in a corpus.
type Match struct {
	Claim      string  `json:"claim"`
	Publisher  string  `json:"publisher"`
	URL        string  `json:"url"`
	Rating     string  `json:"rating"`
	Verdict    Verdict `json:"verdict"`
	Similarity float32 `json:"similarity,omitempty"`
}

// Corpus searches one source of fact-checks.
type Corpus interface {
	Name() string
	Search(ctx context.Context, query string) ([]Match, error)
}

// Ratings are matched as whole words or phrases. False ratings are checked first, then
// ratings that leave the claim open, so "not confirmed" never lands in the true bucket.
var falseRatings = []string{
	"not true", "untrue", "false", "fake", "misleading", "incorrect", "not correct",
	"inaccurate", "not accurate", "pants on fire", "hoax", "fabricated", "distorted", "scam",
	"manipulated", "no evidence", "baseless", "unsubstantiated", "wrong", "debunked", "morphed",
	"edited", "doctored", "satire",
}

var unratedRatings = []string{
	"unverified", "not verified", "unconfirmed", "not confirmed", "unproven", "not proven",
	"half true", "mixture", "needs context", "missing context", "disputed",
}

var trueRatings = []string{
	"true", "correct", "accurate", "verified", "genuine", "authentic", "confirmed",
}

// Classify maps a free-text rating or headline to a verdict.
func Classify(rating string) Verdict {
	words := " " + strings.Join(Tokenize(rating), " ") + " "
	switch {
	case containsPhrase(words, falseRatings):
		return VerdictFalse
	case containsPhrase(words, unratedRatings):
		return VerdictUnrated
	case containsPhrase(words, trueRatings):
		return VerdictTrue
	}
	return VerdictUnrated
}

// containsPhrase reports whether the space-padded token string holds any phrase.
func containsPhrase(words string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(words, " "+p+" ") {
			return true
		}
	}
	return false
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "this": {}, "that": {},
	"it": {}, "its": {}, "with": {}, "as": {}, "at": {}, "by": {}, "from": {}, "has": {},
	"have": {}, "had": {}, "not": {}, "but": {}, "you": {}, "they": {}, "we": {}, "he": {},
	"she": {}, "his": {}, "her": {}, "their": {}, "will": {}, "would": {}, "can": {},
	"url": {}, "http": {}, "https": {}, "www": {},
}

// BuildQuery reduces text to its first maxWords significant words.
func BuildQuery(text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = 12
	}
	tokens := Tokenize(text)
	out := make([]string, 0, maxWords)
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
		if len(out) == maxWords {
			break
		}
	}
	return strings.Join(out, " ")
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
