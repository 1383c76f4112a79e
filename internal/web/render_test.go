package web

import (
	"strings"
	"testing"
)

func TestFormatChars(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{24000, "24,000"},
		{1234567, "1,234,567"},
		{-20500, "-20,500"},
	}
	for _, tt := range tests {
		if got := formatChars(tt.n); got != tt.want {
			t.Errorf("formatChars(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestShortSum(t *testing.T) {
	long := "8f14e45fceea167a5a36dedd4bea2543a1b2c3d4e5f6"
	if got := shortSum(long); got != "8f14e45fceea" {
		t.Errorf("shortSum = %s", got)
	}
	if got := shortSum("abc"); got != "abc" {
		t.Errorf("short input mangled: %s", got)
	}
}

func TestFormatTime(t *testing.T) {
	// 2026-01-15 12:30:00 UTC
	if got := formatTime(1768480200); got != "2026-01-15 12:30" {
		t.Errorf("formatTime = %s", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	html := string(renderMarkdown("## Heading\n\nSome *emphasis*."))
	if !strings.Contains(html, "<h2>Heading</h2>") {
		t.Errorf("heading not rendered: %s", html)
	}
	if !strings.Contains(html, "<em>emphasis</em>") {
		t.Errorf("emphasis not rendered: %s", html)
	}
}

func TestRenderMarkdown_EscapesRawHTML(t *testing.T) {
	html := string(renderMarkdown(`<script>alert(1)</script>`))
	if strings.Contains(html, "<script>") {
		t.Errorf("raw script tag survived: %s", html)
	}
}
