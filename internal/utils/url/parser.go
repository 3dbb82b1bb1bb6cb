package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL accepts absolute http and https page URLs only
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	switch {
	case err != nil:
		return fmt.Errorf("invalid URL: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("invalid URL scheme: must be http or https, got %q", u.Scheme)
	case u.Host == "":
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}

// ResolveURL makes href absolute against base. href comes back unchanged when
// it is already absolute or either side fails to parse.
func ResolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// HostMatches reports whether rawURL's host is expected or a subdomain of it.
// An empty expected host matches everything.
func HostMatches(rawURL, expected string) bool {
	expected = strings.ToLower(strings.TrimPrefix(expected, "www."))
	if expected == "" {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	return host == expected || strings.HasSuffix(host, "."+expected)
}
