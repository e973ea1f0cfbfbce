package signals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"honestlens/corpus"
	"honestlens/types"
)

// Corroboration weights. The score starts at baseScore and moves by up to
// verdictSwing in each direction with the share of false and true matches.
const (
	verdictSwing    = 40
	queryWords      = 12
	maxCorroborated = 5
)

// Corroboration searches fact-check corpora for claims related to the input text.
type Corroboration struct {
	corpora []corpus.Corpus
	logger  *zap.Logger
}

// NewCorroboration returns a collector over corpora. Corpora are queried in parallel.
func NewCorroboration(logger *zap.Logger, corpora ...corpus.Corpus) *Corroboration {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Corroboration{corpora: corpora, logger: logger}
}

func (c *Corroboration) Kind() types.SignalKind { return types.SignalCorroboration }

func (c *Corroboration) Collect(ctx context.Context, in Input) (types.Signal, error) {
	query := corpus.BuildQuery(in.Text, queryWords)
	if query == "" {
		return types.Signal{}, types.ErrNoSignal
	}
	if len(c.corpora) == 0 {
		return types.Signal{}, errors.New("no fact-check corpora configured")
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		matches []corpus.Match
		errs    []error
	)
	for _, cp := range c.corpora {
		wg.Add(1)
		go func(cp corpus.Corpus) {
			defer wg.Done()
			found, err := cp.Search(ctx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("corpus search failed", zap.String("corpus", cp.Name()), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", cp.Name(), err))
				return
			}
			matches = append(matches, found...)
		}(cp)
	}
	wg.Wait()

	if len(errs) == len(c.corpora) {
		return types.Signal{}, errors.Join(errs...)
	}
	if len(matches) == 0 {
		return types.Signal{}, types.ErrNoSignal
	}
	return ScoreMatches(matches), nil
}

// ScoreMatches turns corpus matches into a corroboration signal.
func ScoreMatches(matches []corpus.Match) types.Signal {
	var falseCount, trueCount int
	for _, m := range matches {
		switch m.Verdict {
		case corpus.VerdictFalse:
			falseCount++
		case corpus.VerdictTrue:
			trueCount++
		}
	}
	total := float64(len(matches))
	raw := float64(baseScore) -
		verdictSwing*float64(falseCount)/total +
		verdictSwing*float64(trueCount)/total

	sig := types.Signal{
		Kind:  types.SignalCorroboration,
		Score: types.ClampScore(int(math.Round(raw))),
	}
	if falseCount > 0 {
		sig.Flags = append(sig.Flags, fmt.Sprintf("%d related claim(s) rated false or misleading", falseCount))
	}
	if trueCount > 0 {
		sig.Evidence = append(sig.Evidence, fmt.Sprintf("%d related claim(s) rated true", trueCount))
	}
	if unrated := len(matches) - falseCount - trueCount; unrated > 0 {
		sig.Evidence = append(sig.Evidence, fmt.Sprintf("%d related fact-check(s) without a clear verdict", unrated))
	}

	for i, m := range matches {
		if i == maxCorroborated {
			break
		}
		name := m.Publisher
		if name == "" {
			name = "fact-check"
		}
		if m.Rating != "" && m.Verdict != corpus.VerdictUnrated {
			sig.Evidence = append(sig.Evidence, fmt.Sprintf("%s: %s", name, truncate(m.Claim, 80)))
		}
		sig.Sources = append(sig.Sources, types.SourceRef{
			Name:       name,
			URL:        m.URL,
			SignalType: types.SignalCorroboration,
		})
	}
	return sig
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
