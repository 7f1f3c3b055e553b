// internal/segment/normalize_test.go
package segment

import (
	"strings"
	"testing"
)

func TestNormalizeHeadingsAndEmphasis(t *testing.T) {
	in := "# Title\n\nSome **bold** and _italic_ text."
	got := Normalize(in)
	want := "Title\n\nSome bold and italic text."
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizeLinks(t *testing.T) {
	got := Normalize("See [the docs](https://example.com/docs) for more.")
	want := "See the docs (https://example.com/docs) for more."
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}

	// A bare autolink stays a bare URL.
	got = Normalize("Go to <https://example.com> now.")
	if got != "Go to https://example.com now." {
		t.Errorf("autolink = %q", got)
	}
}

func TestNormalizeCode(t *testing.T) {
	in := "Run `go vet` first.\n\n```sh\necho hi\necho bye\n```"
	got := Normalize(in)
	if !strings.Contains(got, "Run go vet first.") {
		t.Errorf("inline code mangled: %q", got)
	}
	if !strings.Contains(got, "echo hi\necho bye") {
		t.Errorf("fence content mangled: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("fence markers leaked: %q", got)
	}
}

func TestNormalizeListsAndQuotes(t *testing.T) {
	in := "> quoted line\n\n- first\n- second\n- third"
	got := Normalize(in)
	if strings.Contains(got, ">") || strings.Contains(got, "- ") {
		t.Errorf("glyphs leaked: %q", got)
	}
	for _, word := range []string{"quoted line", "first", "second", "third"} {
		if !strings.Contains(got, word) {
			t.Errorf("missing %q in %q", word, got)
		}
	}
}

func TestNormalizeCollapsesBlankLines(t *testing.T) {
	got := Normalize("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestNormalizeTrimsAndPlainText(t *testing.T) {
	if got := Normalize("  plain text  "); got != "plain text" {
		t.Errorf("Normalize = %q", got)
	}
	if got := Normalize(""); got != "" {
		t.Errorf("Normalize(\"\") = %q", got)
	}
}
