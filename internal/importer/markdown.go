package importer

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownImporter handles Markdown files using goldmark. A leading level-1
// heading becomes the title and is not repeated in the body.
type MarkdownImporter struct{}

func (p *MarkdownImporter) Format() string { return "markdown" }

func (p *MarkdownImporter) Import(r io.Reader, filename string) (*Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.TaskList))
	doc := md.Parser().Parse(text.NewReader(src))

	res := &Result{Title: fileTitle(filename)}
	b := newBuilder()

	first := true
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && first && h.Level == 1 {
			if t := strings.TrimSpace(inlineText(h, src)); t != "" {
				res.Title = t
				first = false
				continue
			}
		}
		first = false
		p.block(b, n, src)
	}
	res.Root = b.root
	return res, nil
}

func (p *MarkdownImporter) block(b *builder, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		b.heading(node.Level, inlineText(node, src))
	case *ast.Paragraph, *ast.TextBlock:
		b.paragraph(inlineText(node, src))
	case *ast.FencedCodeBlock:
		b.code(string(node.Language(src)), blockLines(node, src))
	case *ast.CodeBlock:
		b.code("", blockLines(node, src))
	case *ast.Blockquote:
		var parts []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if t := strings.TrimSpace(extractText(c, src)); t != "" {
				parts = append(parts, t)
			}
		}
		b.quote(strings.Join(parts, "\n"))
	case *ast.List:
		p.list(b, node, src)
		b.endList()
	case *ast.ThematicBreak, *ast.HTMLBlock:
	default:
		b.paragraph(extractText(n, src))
	}
}

// list flattens nested lists into the items of the outermost one; the
// exported text has a single list level.
func (p *MarkdownImporter) list(b *builder, l *ast.List, src []byte) {
	listType := listBullet
	if l.IsOrdered() {
		listType = listNumber
	}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var nested []*ast.List
		itemType := listType
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if c.FirstChild() != nil {
				if _, ok := c.FirstChild().(*east.TaskCheckBox); ok {
					itemType = listCheck
				}
			}
			if t := strings.TrimSpace(inlineText(c, src)); t != "" {
				parts = append(parts, t)
			}
		}
		b.item(itemType, strings.Join(parts, " "))
		for _, sub := range nested {
			p.list(b, sub, src)
		}
	}
}

// inlineText renders the inline content of a block. Soft line breaks become
// spaces; hard breaks are kept as newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeInlines(&buf, n, src)
	return buf.String()
}

func writeInlines(buf *bytes.Buffer, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(buf, c, src)
	}
}

func writeInline(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch v := n.(type) {
	case *ast.Text:
		buf.Write(v.Segment.Value(src))
		switch {
		case v.HardLineBreak():
			buf.WriteByte('\n')
		case v.SoftLineBreak():
			buf.WriteByte(' ')
		}
	case *ast.String:
		buf.Write(v.Value)
	case *ast.AutoLink:
		buf.Write(v.URL(src))
	case *ast.RawHTML, *east.TaskCheckBox:
	default:
		writeInlines(buf, n, src)
	}
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

// extractText gets the text content of any goldmark block.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		buf.WriteString(blockLines(n, src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
			continue
		}
		writeInline(&buf, c, src)
	}
	return strings.TrimSpace(buf.String())
}
