package signals

import (
	"context"
	"fmt"
	"strings"

	"honestlens/types"
)

// Basic heuristic rules.
const (
	basicTermPenalty    = 8
	maxBasicTermPenalty = 40
	basicTermFlagCount  = 2 // more than this many terms raises a flag
	basicTrustedBonus   = 30
	basicUntrustedMalus = 10
	basicFallbackWeight = 1.0
)

// Basic is the network-free keyword and domain heuristic used in degraded mode. It only
// fails on a malformed URL.
type Basic struct {
	trusted []string
}

// NewBasic returns the degraded-mode collector using TrustedDomains.
func NewBasic() *Basic { return &Basic{trusted: TrustedDomains} }

func (b *Basic) Kind() types.SignalKind { return types.SignalBasic }

func (b *Basic) Collect(ctx context.Context, in Input) (types.Signal, error) {
	if err := ctx.Err(); err != nil {
		return types.Signal{}, err
	}

	sig := types.Signal{
		Kind:       types.SignalBasic,
		Score:      baseScore,
		WeightHint: basicFallbackWeight,
		Evidence:   []string{"basic keyword and domain heuristic"},
	}

	terms := matchTerms(normalizeText(in.Text), basicSuspiciousTerms)
	penalty := min(len(terms)*basicTermPenalty, maxBasicTermPenalty)
	sig.Score -= penalty
	if len(terms) > basicTermFlagCount {
		sig.Flags = append(sig.Flags, fmt.Sprintf("multiple suspicious terms: %s", strings.Join(terms, ", ")))
	}

	if strings.TrimSpace(in.URL) != "" {
		host, _, err := ParseHost(in.URL)
		if err != nil {
			return types.Signal{}, fmt.Errorf("basic heuristic: %w", err)
		}
		if IsTrustedHost(host, b.trusted) {
			sig.Score += basicTrustedBonus
			sig.Evidence = append(sig.Evidence, fmt.Sprintf("trusted domain: %s", host))
		} else {
			sig.Score -= basicUntrustedMalus
			sig.Flags = append(sig.Flags, "unverified domain")
		}
		sig.Sources = append(sig.Sources, types.SourceRef{Name: host, URL: in.URL, SignalType: types.SignalBasic})
	}

	sig.Score = types.ClampScore(sig.Score)
	return sig, nil
}
