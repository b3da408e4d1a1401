// Package replytext turns generated reply drafts into the plain text the
// review platform displays. Drafts sometimes carry markdown (bold, headings,
// lists); the platform shows markup characters literally.
package replytext

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

type chunk struct {
	text   string
	inList bool
}

// Plain strips markdown syntax, keeping text, line breaks, list markers and
// paragraph boundaries. Words are never dropped: raw HTML is kept as literal
// text and link destinations follow their label. If nothing printable
// remains the trimmed input is returned unchanged.
func Plain(content string) string {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	var chunks []chunk
	var b strings.Builder
	flush := func(n ast.Node) {
		s := strings.TrimSpace(b.String())
		b.Reset()
		if s != "" {
			chunks = append(chunks, chunk{text: s, inList: insideList(n)})
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(src))
				if n.HardLineBreak() || n.SoftLineBreak() {
					b.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
			return ast.WalkContinue, nil
		case *ast.AutoLink:
			if entering {
				b.Write(n.URL(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if entering {
				b.WriteString(itemMarker(n))
			}
			return ast.WalkContinue, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				flush(n)
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			// "<Maria>" parses as an inline tag; it is text to the reader
			if entering {
				for i := 0; i < n.Segments.Len(); i++ {
					seg := n.Segments.At(i)
					b.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				if n.HasClosure() {
					b.Write(n.ClosureLine.Value(src))
				}
				flush(n)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if !entering {
				writeDestination(&b, n.Destination, n, src)
			}
			return ast.WalkContinue, nil
		case *ast.Image:
			if !entering {
				writeDestination(&b, n.Destination, n, src)
			}
			return ast.WalkContinue, nil
		}
		// a list item's marker stays buffered until its first text block closes
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindListItem && n.Kind() != ast.KindList && n.Kind() != ast.KindDocument {
			flush(n)
		}
		return ast.WalkContinue, nil
	})

	var out strings.Builder
	for i, c := range chunks {
		if i > 0 {
			if c.inList && chunks[i-1].inList {
				out.WriteString("\n")
			} else {
				out.WriteString("\n\n")
			}
		}
		out.WriteString(c.text)
	}
	if out.Len() == 0 {
		return strings.TrimSpace(content)
	}
	return out.String()
}

// writeDestination appends " (url)" after a link label unless the label
// already shows the url.
func writeDestination(b *strings.Builder, dest []byte, n ast.Node, src []byte) {
	d := strings.TrimSpace(string(dest))
	if d == "" {
		return
	}
	if strings.TrimSpace(string(n.Text(src))) == d {
		return
	}
	b.WriteString(" (")
	b.WriteString(d)
	b.WriteByte(')')
}

func insideList(n ast.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindListItem {
			return true
		}
	}
	return false
}

func itemMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	idx := 0
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		idx++
	}
	return fmt.Sprintf("%d. ", list.Start+idx)
}
