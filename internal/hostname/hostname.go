// Package hostname normalizes user- and page-supplied host input into
// canonical bare-domain strings. Pure functions, no side effects.
package hostname

import "strings"

// maxDomainLen is the DNS limit on a full domain name.
const maxDomainLen = 253

// Normalize sanitizes arbitrary input into a canonical bare domain:
// trimmed, lower-cased, scheme/www/path/query/fragment/port stripped.
// Returns ok=false for input that is empty, too long, missing a dot, or
// failing the conservative label grammar. Never panics.
func Normalize(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))

	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "www.")

	// Drop path, query, fragment - whichever comes first.
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	// Drop a trailing :port.
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	if s == "" || len(s) > maxDomainLen || !strings.Contains(s, ".") {
		return "", false
	}
	if !validLabels(s) {
		return "", false
	}
	return s, true
}

// validLabels enforces [a-z0-9]([a-z0-9-]*[a-z0-9])? per dot-separated
// label.
func validLabels(s string) bool {
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			switch {
			case c >= 'a' && c <= 'z':
			case c >= '0' && c <= '9':
			case c == '-':
				if i == 0 || i == len(label)-1 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

// Canonical strips a leading "www." from an already-bare domain. All
// blocklist, rule, and override comparisons go through this so
// "www.x.com" and "x.com" are the same entity even if one slipped
// through un-normalized.
func Canonical(domain string) string {
	return strings.TrimPrefix(strings.ToLower(domain), "www.")
}

// Equal compares two domains after canonicalization.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}
