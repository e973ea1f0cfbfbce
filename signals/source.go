package signals

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"honestlens/types"
)

// Source scores.
const (
	trustedSourceScore   = 85
	untrustedSourceScore = 40
	invalidURLScore      = 20
	httpsBonus           = 5
)

// Source scores the domain a URL resolves to against TrustedDomains.
type Source struct {
	trusted []string
}

// NewSource returns a source collector using TrustedDomains, or the given override.
func NewSource(trusted ...string) *Source {
	if len(trusted) == 0 {
		trusted = TrustedDomains
	}
	return &Source{trusted: trusted}
}

func (s *Source) Kind() types.SignalKind { return types.SignalSource }

func (s *Source) Collect(ctx context.Context, in Input) (types.Signal, error) {
	if err := ctx.Err(); err != nil {
		return types.Signal{}, err
	}
	if strings.TrimSpace(in.URL) == "" {
		return types.Signal{}, types.ErrNoSignal
	}

	host, secure, err := ParseHost(in.URL)
	if err != nil {
		return types.Signal{
			Kind:  types.SignalSource,
			Score: invalidURLScore,
			Flags: []string{"invalid URL"},
		}, nil
	}

	sig := types.Signal{
		Kind:    types.SignalSource,
		Sources: []types.SourceRef{{Name: host, URL: in.URL, SignalType: types.SignalSource}},
	}
	if IsTrustedHost(host, s.trusted) {
		sig.Score = trustedSourceScore
		sig.Evidence = append(sig.Evidence, fmt.Sprintf("trusted domain: %s", host))
	} else {
		sig.Score = untrustedSourceScore
		sig.Flags = append(sig.Flags, "unverified domain")
	}
	if secure {
		sig.Score += httpsBonus
		sig.Evidence = append(sig.Evidence, "served over HTTPS")
	}
	sig.Score = types.ClampScore(sig.Score)
	return sig, nil
}

// ParseHost extracts the lowercase host of an absolute http(s) URL, without a leading "www.".
func ParseHost(raw string) (host string, secure bool, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false, err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host = strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return "", false, fmt.Errorf("missing or unqualified host in %q", raw)
	}
	return strings.TrimPrefix(host, "www."), scheme == "https", nil
}

// IsTrustedHost reports whether host equals or is a subdomain of an allowlisted domain.
func IsTrustedHost(host string, trusted []string) bool {
	for _, d := range trusted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
