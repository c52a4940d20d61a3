// Package metadata extracts a page title and favicon URL from fetched
// HTML. Extraction is regex-based by design: the input is a bounded,
// already size-capped document and the worst case for malformed markup
// is a nil result, never an error. It will not survive deliberately
// obfuscated or deeply nested tags; that trade-off is accepted over
// pulling in a full HTML parser.
package metadata

import (
	"net/url"
	"regexp"
)

// Metadata holds what was extracted from a page. Nil fields mean the
// page carried no usable value.
type Metadata struct {
	Title   *string
	Favicon *string
}

var (
	titleRe        = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitleRe      = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:title["'][^>]*content=["']([^"']*)["'][^>]*>`)
	twitterTitleRe = regexp.MustCompile(`(?i)<meta[^>]*name=["']twitter:title["'][^>]*content=["']([^"']*)["'][^>]*>`)

	iconRe       = regexp.MustCompile(`(?i)<link[^>]*rel=["'](?:shortcut )?icon["'][^>]*href=["']([^"']*)["'][^>]*>`)
	iconHrefRe   = regexp.MustCompile(`(?i)<link[^>]*href=["']([^"']*)["'][^>]*rel=["'](?:shortcut )?icon["'][^>]*>`)
	appleTouchRe = regexp.MustCompile(`(?i)<link[^>]*rel=["']apple-touch-icon["'][^>]*href=["']([^"']*)["'][^>]*>`)
)

// ExtractTitle pulls the page title out of html. Precedence:
// <title> content, then og:title, then twitter:title. Returns "" when
// nothing usable was found.
func ExtractTitle(html string) string {
	for _, re := range []*regexp.Regexp{titleRe, ogTitleRe, twitterTitleRe} {
		m := re.FindStringSubmatch(html)
		if m == nil || m[1] == "" {
			continue
		}
		if title := SanitizeText(m[1], TitleMaxLength); title != "" {
			return title
		}
	}
	return ""
}

// ExtractFavicon pulls the favicon URL out of html, resolved against
// pageURL. Precedence: <link rel=icon href=...>, the same link with
// attribute order reversed, apple-touch-icon, and finally the
// synthesized {origin}/favicon.ico. Candidates that fail URL
// sanitization are discarded individually; the next one is tried.
// Returns "" only when every candidate, including the default, is
// unusable.
func ExtractFavicon(html, pageURL string) string {
	for _, re := range []*regexp.Regexp{iconRe, iconHrefRe, appleTouchRe} {
		m := re.FindStringSubmatch(html)
		if m == nil || m[1] == "" {
			continue
		}
		if icon := sanitizeURL(resolveURL(m[1], pageURL), FaviconURLMaxLength); icon != "" {
			return icon
		}
	}

	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return sanitizeURL(u.Scheme+"://"+u.Host+"/favicon.ico", FaviconURLMaxLength)
}

// Parse extracts title and favicon from html. Pure function, no I/O;
// never fails on malformed input.
func Parse(html, pageURL string) Metadata {
	var md Metadata
	if title := ExtractTitle(html); title != "" {
		md.Title = &title
	}
	if favicon := ExtractFavicon(html, pageURL); favicon != "" {
		md.Favicon = &favicon
	}
	return md
}

// FallbackTitle produces a title for pages where extraction came up
// empty: the page's hostname run through the same sanitization
// pipeline, or "Untitled Bookmark" when even that cannot be derived.
func FallbackTitle(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return "Untitled Bookmark"
	}
	if title := SanitizeText(u.Hostname(), TitleMaxLength); title != "" {
		return title
	}
	return "Untitled Bookmark"
}
