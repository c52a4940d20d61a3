package metadata

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// TitleMaxLength caps sanitized titles (runes, not bytes).
	TitleMaxLength = 200
	// FaviconURLMaxLength caps favicon candidate URLs.
	FaviconURLMaxLength = 500
)

// The named entities pages actually use in titles. Anything fancier
// arrives as a numeric reference and is handled below.
var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&#x27;": "'",
	"&apos;": "'",
	"&#x2F;": "/",
	"&#47;":  "/",
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	decimalRefRe = regexp.MustCompile(`&#(\d+);`)
	hexRefRe     = regexp.MustCompile(`&#x([0-9a-fA-F]+);`)
	controlRe    = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func decodeHTMLEntities(text string) string {
	for entity, ch := range htmlEntities {
		text = strings.ReplaceAll(text, entity, ch)
	}

	text = decimalRefRe.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.ParseInt(m[2:len(m)-1], 10, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})

	text = hexRefRe.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.ParseInt(m[3:len(m)-1], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})

	return text
}

// SanitizeText cleans extracted text for storage: strips embedded tags,
// decodes HTML entities, removes control characters, collapses
// whitespace runs, trims, and truncates to maxLen runes.
func SanitizeText(text string, maxLen int) string {
	s := tagRe.ReplaceAllString(text, "")
	s = decodeHTMLEntities(s)
	s = controlRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxLen {
		s = strings.TrimSpace(string(runes[:maxLen]))
	}
	return s
}

// sanitizeURL validates a favicon candidate: must parse as an http(s)
// URL and fit the length cap. Returns "" when the candidate is unusable
// so the caller can fall through to the next one.
func sanitizeURL(raw string, maxLen int) string {
	s := strings.TrimSpace(raw)

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if len(s) > maxLen {
		return ""
	}
	return s
}

// resolveURL resolves a possibly-relative candidate against the page
// URL. On any parse failure the candidate is returned unchanged and
// left for sanitizeURL to reject.
func resolveURL(candidate, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return candidate
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return candidate
	}
	return base.ResolveReference(ref).String()
}
