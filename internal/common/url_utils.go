package common

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL parses and canonicalizes a page URL: scheme and host are
// lowercased, fragments are stripped, and a bare host gains a "/" path.
// Only http and https URLs are accepted.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String(), nil
}

// SameHost reports whether two URLs share a host, treating "www." as transparent
func SameHost(a, b string) bool {
	pa, err := url.Parse(a)
	if err != nil {
		return false
	}
	pb, err := url.Parse(b)
	if err != nil {
		return false
	}
	return stripWWW(pa.Hostname()) == stripWWW(pb.Hostname())
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// ResolveLink resolves href against base and returns an absolute URL,
// or "" when href is not a followable page link (mailto, javascript, anchors).
func ResolveLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""

	return resolved.String()
}

// PagePath maps a page URL to the relative file path used in downloads and
// rewritten internal links: "/" becomes index.html, other paths gain a .html
// suffix when they lack an extension.
func PagePath(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "index.html"
	}

	p := strings.Trim(parsed.Path, "/")
	if p == "" {
		return "index.html"
	}

	if path.Ext(p) == "" {
		p += ".html"
	}

	return p
}
