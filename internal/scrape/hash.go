package scrape

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// tempIdentifierHashLen is how much of the URL hash goes into a staged
// record's identifier. 16 hex chars keeps collisions out of reach while
// staying readable in review UIs.
const tempIdentifierHashLen = 16

// NormalizeURL canonicalizes a URL for fingerprinting: lowercased scheme and
// host, no fragment, no trailing slash. Query strings are kept because they
// routinely select the listing being shown.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}

// HashURL returns the dedup fingerprint of a normalized URL.
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// TempIdentifier derives the per-org staging dedup key from a URL hash. The
// same page always maps to the same identifier, so a re-scrape merges
// instead of duplicating.
func TempIdentifier(urlHash string) string {
	if len(urlHash) > tempIdentifierHashLen {
		urlHash = urlHash[:tempIdentifierHashLen]
	}
	return "cand-" + urlHash
}
