// Package signals holds the independent collectors that turn one piece of content into a
// partial credibility score. Collectors share no state; every delta and threshold they
// apply is a fixed constant in this package.
package signals

import (
	"context"

	"honestlens/types"
)

// Input is the content a collector scores. Text holds the submitted text or the page text
// extracted for a URL.
type Input struct {
	Kind  types.Kind
	Text  string
	URL   string
	Image []byte
}

// Collector produces one signal for an input. Returning types.ErrNoSignal means the
// collector ran but had nothing to say.
type Collector interface {
	Kind() types.SignalKind
	Collect(ctx context.Context, in Input) (types.Signal, error)
}

// OCR extracts printed text from image bytes.
type OCR interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

const baseScore = 50
