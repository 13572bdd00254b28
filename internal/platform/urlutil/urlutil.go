// Package urlutil provides utilities for URL parsing and filename derivation.
package urlutil

import (
	"path/filepath"
	"strings"
)

// maxBaseLen caps sanitized basenames so derived artifact names stay
// below common filesystem limits once the digest suffix is appended.
const maxBaseLen = 120

// ExtractExtension returns the lowercased file extension from a URL or
// path, ignoring query strings and fragments.
func ExtractExtension(rawURL string) string {
	clean := rawURL
	if idx := strings.IndexAny(clean, "?#"); idx != -1 {
		clean = clean[:idx]
	}
	return strings.ToLower(filepath.Ext(clean))
}

// SanitizeBase turns a source URL into a filesystem-safe basename:
// the scheme is stripped, the query/fragment discarded, and path or
// reserved characters replaced with underscores.
func SanitizeBase(rawURL string) string {
	base := strings.TrimSpace(rawURL)
	if idx := strings.Index(base, "://"); idx != -1 {
		base = base[idx+3:]
	}
	if idx := strings.IndexAny(base, "?#"); idx != -1 {
		base = base[:idx]
	}
	base = strings.TrimSuffix(base, ExtractExtension(base))

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	sanitized := strings.Trim(b.String(), "._")
	if len(sanitized) > maxBaseLen {
		sanitized = sanitized[:maxBaseLen]
	}
	if sanitized == "" {
		sanitized = "asset"
	}
	return sanitized
}
