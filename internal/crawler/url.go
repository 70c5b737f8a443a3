package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin returns the network location (host[:port]) of rawURL in lower case.
// Two URLs belong to the same site when their origins are equal.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return strings.ToLower(u.Host), nil
}

// ParseSeed validates a seed and returns its canonical URL (fragment removed,
// empty path replaced by "/") together with its origin.
func ParseSeed(seed Seed) (string, string, error) {
	if seed.MaxDepth < 0 {
		return "", "", fmt.Errorf("%w: max depth %d for %q must be >= 0", ErrInvalidSeed, seed.MaxDepth, seed.URL)
	}
	u, err := url.Parse(strings.TrimSpace(seed.URL))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidSeed, u.Scheme, seed.URL)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w: missing host in %q", ErrInvalidSeed, seed.URL)
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), strings.ToLower(u.Host), nil
}
