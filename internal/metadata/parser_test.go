package metadata

import (
	"strings"
	"testing"
)

func TestExtractTitle_Precedence(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"title tag",
			`<html><head><title>Page Title</title></head></html>`,
			"Page Title",
		},
		{
			"title wins over og:title",
			`<title>Real</title><meta property="og:title" content="OG">`,
			"Real",
		},
		{
			"og:title when no title tag",
			`<meta property="og:title" content="OG Title">`,
			"OG Title",
		},
		{
			"twitter:title as last resort",
			`<meta name="twitter:title" content="Tweet Title">`,
			"Tweet Title",
		},
		{
			"empty title falls through to og",
			`<title>   </title><meta property="og:title" content="OG">`,
			"OG",
		},
		{
			"title with attributes",
			`<title data-reactid="42">Attr Title</title>`,
			"Attr Title",
		},
		{
			"multiline title",
			"<title>\n  Line One\n  Line Two\n</title>",
			"Line One Line Two",
		},
		{
			"case insensitive",
			`<TITLE>Shouted</TITLE>`,
			"Shouted",
		},
		{
			"no title anywhere",
			`<html><body><p>nothing</p></body></html>`,
			"",
		},
		{
			"malformed html",
			`<title>unclosed`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.html); got != tt.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTitle_EntityRoundTrip(t *testing.T) {
	html := `<title>Hello &amp; "World" &#39;s</title>`
	want := `Hello & "World" 's`
	if got := ExtractTitle(html); got != want {
		t.Errorf("ExtractTitle() = %q, want %q", got, want)
	}
}

func TestExtractFavicon(t *testing.T) {
	const pageURL = "https://example.com/path/page.html"

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"rel icon absolute",
			`<link rel="icon" href="https://cdn.example.com/fav.ico">`,
			"https://cdn.example.com/fav.ico",
		},
		{
			"rel icon relative resolved against page",
			`<link rel="icon" href="/img/fav.png">`,
			"https://example.com/img/fav.png",
		},
		{
			"shortcut icon",
			`<link rel="shortcut icon" href="/s.ico">`,
			"https://example.com/s.ico",
		},
		{
			"href before rel",
			`<link href="/reversed.ico" rel="icon">`,
			"https://example.com/reversed.ico",
		},
		{
			"apple touch icon",
			`<link rel="apple-touch-icon" href="/apple.png">`,
			"https://example.com/apple.png",
		},
		{
			"icon wins over apple touch",
			`<link rel="apple-touch-icon" href="/apple.png"><link rel="icon" href="/fav.ico">`,
			"https://example.com/fav.ico",
		},
		{
			"default when no link tags",
			`<html><head><title>x</title></head></html>`,
			"https://example.com/favicon.ico",
		},
		{
			"bad scheme candidate falls through to default",
			`<link rel="icon" href="javascript:alert(1)">`,
			"https://example.com/favicon.ico",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFavicon(tt.html, pageURL); got != tt.want {
				t.Errorf("ExtractFavicon() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractFavicon_OverlongCandidateDiscarded(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("x", 600)
	html := `<link rel="icon" href="` + long + `">`

	got := ExtractFavicon(html, "https://example.com/")
	if got != "https://example.com/favicon.ico" {
		t.Errorf("overlong candidate not discarded, got %q", got)
	}
}

func TestExtractFavicon_UnparseablePage(t *testing.T) {
	if got := ExtractFavicon("<html></html>", "::not-a-url::"); got != "" {
		t.Errorf("expected empty favicon for unusable page URL, got %q", got)
	}
}

func TestParse(t *testing.T) {
	html := `<html><head>
		<title>My &amp; Page</title>
		<link rel="icon" href="/fav.ico">
	</head></html>`

	md := Parse(html, "https://example.com/a/b")
	if md.Title == nil || *md.Title != "My & Page" {
		t.Errorf("title = %v, want My & Page", md.Title)
	}
	if md.Favicon == nil || *md.Favicon != "https://example.com/fav.ico" {
		t.Errorf("favicon = %v", md.Favicon)
	}

	md = Parse("<body>bare</body>", "https://example.com/")
	if md.Title != nil {
		t.Errorf("expected nil title, got %q", *md.Title)
	}
	if md.Favicon == nil || *md.Favicon != "https://example.com/favicon.ico" {
		t.Errorf("favicon = %v, want default", md.Favicon)
	}
}

func TestFallbackTitle(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"hostname", "https://example.com/some/path", "example.com"},
		{"hostname with port", "http://example.com:8080/", "example.com"},
		{"unparseable", "::::", "Untitled Bookmark"},
		{"empty", "", "Untitled Bookmark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackTitle(tt.url); got != tt.want {
				t.Errorf("FallbackTitle(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
