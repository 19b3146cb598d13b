package richtext

import (
	"strings"
)

// PlainText flattens n for search indexing: text nodes yield their literal
// text and containers join their children's plain text with single spaces.
// Childless non-text nodes contribute nothing, so empty wrappers never add
// stray separators. A nil tree yields "".
func PlainText(n Node) string {
	return plainText(n, 0)
}

func plainText(n Node, depth int) string {
	if n == nil || depth > MaxDepth {
		return ""
	}
	if t, ok := n.(*Text); ok {
		if t == nil {
			return ""
		}
		return t.Text
	}

	kids := Children(n)
	if len(kids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(kids))
	for _, c := range kids {
		if c == nil {
			continue
		}
		if _, isText := c.(*Text); !isText && len(Children(c)) == 0 {
			continue
		}
		parts = append(parts, plainText(c, depth+1))
	}
	return strings.Join(parts, " ")
}

// InlineText concatenates the literal text of every descendant text node of n
// in document order, with no separator.
func InlineText(n Node) string {
	var b strings.Builder
	writeInline(&b, n, 0)
	return b.String()
}

func writeInline(b *strings.Builder, n Node, depth int) {
	if n == nil || depth > MaxDepth {
		return
	}
	if t, ok := n.(*Text); ok {
		if t != nil {
			b.WriteString(t.Text)
		}
		return
	}
	for _, c := range Children(n) {
		writeInline(b, c, depth+1)
	}
}

// Markdown renders n as Markdown-like text, preserving headings, lists,
// quotes and code blocks. Blocks are separated by a blank line.
func Markdown(n Node) string {
	return markdown(n, 0)
}

func markdown(n Node, depth int) string {
	if n == nil || depth > MaxDepth {
		return ""
	}

	switch v := n.(type) {
	case *Root:
		if v == nil {
			return ""
		}
		return joinMarkdown(v.Children, "\n\n", depth)
	case *Heading:
		if v == nil {
			return ""
		}
		level := v.Level
		if level < 1 || level > 6 {
			level = 2
		}
		return strings.Repeat("#", level) + " " + inline(v, depth)
	case *Paragraph:
		return inline(v, depth)
	case *List:
		if v == nil {
			return ""
		}
		return joinMarkdown(v.Children, "\n", depth)
	case *ListItem:
		return "- " + inline(v, depth)
	case *Quote:
		return "> " + inline(v, depth)
	case *Code:
		if v == nil {
			return ""
		}
		return "```" + v.Language + "\n" + inline(v, depth) + "\n```"
	case *Text:
		if v == nil {
			return ""
		}
		return v.Text
	case *LineBreak:
		return "\n"
	case *Unknown:
		if v == nil || len(v.Children) == 0 {
			return ""
		}
		return joinMarkdown(v.Children, "\n\n", depth)
	}
	return ""
}

func joinMarkdown(kids []Node, sep string, depth int) string {
	parts := make([]string, len(kids))
	for i, c := range kids {
		parts[i] = markdown(c, depth+1)
	}
	return strings.Join(parts, sep)
}

func inline(n Node, depth int) string {
	var b strings.Builder
	writeInline(&b, n, depth)
	return b.String()
}
