package metadata

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello World", "Hello World"},
		{"named entities", `Hello &amp; &quot;World&quot; &#39;s`, `Hello & "World" 's`},
		{"lt gt", "a &lt;b&gt; c", "a <b> c"},
		{"apos and slash", "it&apos;s a&#x2F;b a&#47;b", "it's a/b a/b"},
		{"decimal reference", "caf&#233;", "café"},
		{"hex reference", "caf&#xE9;", "café"},
		{"embedded tags stripped", "Hello <b>bold</b> <script>x</script>world", "Hello bold xworld"},
		{"control chars removed", "a\x00b\x1Fc\x7Fd", "abcd"},
		{"whitespace collapsed", "  a \t\n  b   c  ", "a b c"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.in, TitleMaxLength); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Truncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := SanitizeText(long, TitleMaxLength)
	if len([]rune(got)) != TitleMaxLength {
		t.Errorf("length = %d, want %d", len([]rune(got)), TitleMaxLength)
	}

	// Truncation counts runes, never splitting a multi-byte character.
	multi := strings.Repeat("é", 250)
	got = SanitizeText(multi, TitleMaxLength)
	if len([]rune(got)) != TitleMaxLength {
		t.Errorf("rune length = %d, want %d", len([]rune(got)), TitleMaxLength)
	}
	if !strings.HasSuffix(got, "é") {
		t.Error("truncation split a multi-byte character")
	}
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"https", "https://example.com/favicon.ico", "https://example.com/favicon.ico"},
		{"http", "http://example.com/icon.png", "http://example.com/icon.png"},
		{"trimmed", "  https://example.com/f.ico  ", "https://example.com/f.ico"},
		{"javascript scheme", "javascript:alert(1)", ""},
		{"data uri", "data:image/png;base64,AAAA", ""},
		{"relative", "/favicon.ico", ""},
		{"too long", "https://example.com/" + strings.Repeat("a", 500), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeURL(tt.in, FaviconURLMaxLength); got != tt.want {
				t.Errorf("sanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
