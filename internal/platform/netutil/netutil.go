package netutil

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HostKey extracts the grouping key for a candidate asset URL: the
// lowercased host, including an explicit port when present. It returns
// an empty string for URLs that cannot be attributed to a host.
func HostKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}
	if strings.Contains(host, "*") {
		return ""
	}
	if net.ParseIP(host) == nil && !strings.Contains(host, ".") {
		return ""
	}

	if port := parsed.Port(); port != "" {
		return host + ":" + port
	}
	return host
}

// RegisteredDomain collapses a host to its registrable domain
// (eTLD+1). IP literals and hosts without a recognizable public suffix
// are returned as-is, lowercased. Used for per-domain rollups in logs.
func RegisteredDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if net.ParseIP(host) != nil {
		return host
	}
	if effective, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && effective != "" {
		return strings.ToLower(effective)
	}
	return host
}
