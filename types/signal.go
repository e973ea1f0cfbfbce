package types

// SignalKind identifies the collector that produced a signal
type SignalKind string

const (
	SignalContent        SignalKind = "content"
	SignalSource         SignalKind = "source"
	SignalCorroboration  SignalKind = "corroboration"
	SignalImageForensics SignalKind = "image_forensics"
	SignalBasic          SignalKind = "basic"
)

// SignalOrder is the collector-priority order used when merging evidence and flags.
var SignalOrder = []SignalKind{
	SignalContent,
	SignalSource,
	SignalCorroboration,
	SignalImageForensics,
	SignalBasic,
}

// Rank returns the position of k in SignalOrder, or len(SignalOrder) when unknown.
func (k SignalKind) Rank() int {
	for i, s := range SignalOrder {
		if s == k {
			return i
		}
	}
	return len(SignalOrder)
}

// TextDerived reports whether the signal is computed from text rather than pixels.
func (k SignalKind) TextDerived() bool {
	return k == SignalContent || k == SignalSource || k == SignalCorroboration
}

// Signal is one collector's independent partial judgment.
type Signal struct {
	Kind     SignalKind  `json:"kind"`
	Score    int         `json:"score"`
	Evidence []string    `json:"evidence,omitempty"`
	Flags    []string    `json:"flags,omitempty"`
	Sources  []SourceRef `json:"sources,omitempty"`
	// WeightHint is used by fusion only for kinds without a base weight.
	WeightHint float64 `json:"weightHint,omitempty"`
	// Nested holds signals derived from this one, such as OCR text scored as content.
	Nested []Signal `json:"nested,omitempty"`
}

// ClampScore bounds a raw score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
