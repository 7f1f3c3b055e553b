// internal/segment/normalize.go
package segment

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Normalize flattens assistant-produced markdown into plain text suitable
// for an SMS body: headings and emphasis markers are stripped, code blocks
// are kept verbatim, links render as "label (url)", list and quote glyphs
// are dropped. Runs of blank lines collapse to a single blank line.
func Normalize(input string) string {
	src := []byte(input)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	var b strings.Builder
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		renderBlock(&b, child, src)
	}

	out := blankRuns.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderBlock(b *strings.Builder, n ast.Node, src []byte) {
	switch n := n.(type) {
	case *ast.Heading, *ast.Paragraph:
		renderChildren(b, n, src)
		b.WriteString("\n\n")
	case *ast.TextBlock:
		renderChildren(b, n, src)
		b.WriteString("\n")
	case *ast.FencedCodeBlock:
		writeLines(b, n, src)
		b.WriteString("\n")
	case *ast.CodeBlock:
		writeLines(b, n, src)
		b.WriteString("\n")
	case *ast.HTMLBlock:
		writeLines(b, n, src)
		b.WriteString("\n")
	case *ast.Blockquote:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			renderBlock(b, child, src)
		}
	case *ast.List:
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				renderBlock(b, child, src)
			}
		}
		b.WriteString("\n")
	case *ast.ThematicBreak:
		// dropped entirely
	default:
		renderChildren(b, n, src)
	}
}

func renderChildren(b *strings.Builder, n ast.Node, src []byte) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		renderInline(b, child, src)
	}
}

func renderInline(b *strings.Builder, n ast.Node, src []byte) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(src))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte('\n')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				b.Write(t.Segment.Value(src))
			}
		}
	case *ast.Link:
		writeLinked(b, n, string(n.Destination), src)
	case *ast.Image:
		writeLinked(b, n, string(n.Destination), src)
	case *ast.AutoLink:
		b.Write(n.URL(src))
	default:
		renderChildren(b, n, src)
	}
}

// writeLinked renders a link or image as "label (url)", or just the url when
// the label repeats it.
func writeLinked(b *strings.Builder, n ast.Node, dest string, src []byte) {
	var label strings.Builder
	renderChildren(&label, n, src)

	text := strings.TrimSpace(label.String())
	if text == "" || text == dest {
		b.WriteString(dest)
		return
	}
	b.WriteString(text)
	if dest != "" {
		b.WriteString(" (")
		b.WriteString(dest)
		b.WriteString(")")
	}
}

func writeLines(b *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}
