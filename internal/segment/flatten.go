// ABOUTME: Markdown-to-plain-text flattening for SMS delivery
// ABOUTME: Walks the goldmark AST; formatting marks are dropped, link targets kept

package segment

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Flatten renders markdown as plain text suitable for an SMS body. Emphasis
// and heading markers disappear, list items become "- " lines, code blocks
// keep their literal content, and links become "text (url)".
func Flatten(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch v := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(v.Segment.Value(src))
				if v.SoftLineBreak() || v.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.Link:
			if !entering && len(v.Destination) > 0 {
				b.WriteString(" (")
				b.Write(v.Destination)
				b.WriteByte(')')
			}
		case *ast.AutoLink:
			if entering {
				b.Write(v.URL(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				writeLines(&b, n, src)
				b.WriteByte('\n')
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			} else {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	out := blankRuns.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

// writeLines copies a block node's raw source lines.
func writeLines(b *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}
