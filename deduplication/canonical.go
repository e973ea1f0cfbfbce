// Package deduplication maps canonical URLs to the request that already verified them.
package deduplication

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// CanonicalURL normalizes a URL for use as a dedup key:
// - lowercase scheme and host, drop "www." and default ports
// - remove the fragment and tracking query params (utm_*, fbclid, gclid)
// - sort remaining query params and trim trailing slashes
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		// fallback: lowercase and trim
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()

	out := u.String()
	if u.RawQuery == "" {
		out = strings.TrimRight(out, "/")
	}
	return out
}

func isDefaultPort(scheme, port string) bool {
	return scheme == "http" && port == "80" || scheme == "https" && port == "443"
}

// HashKey returns the SHA-256 hex digest of a canonical key.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
