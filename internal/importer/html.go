package importer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLImporter handles HTML files. The <title> element, when present, names
// the document.
type HTMLImporter struct{}

func (p *HTMLImporter) Format() string { return "html" }

func (p *HTMLImporter) Import(r io.Reader, filename string) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{Title: fileTitle(filename)}
	if title := findTitle(doc); title != "" {
		res.Title = title
	}

	b := newBuilder()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				b.heading(level, textContent(n))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "template", "noscript":
				return
			case "p", "td", "th", "dt", "dd", "figcaption":
				b.paragraph(textContent(n))
				return
			case "blockquote":
				b.quote(textContent(n))
				return
			case "pre":
				b.code(codeLanguage(n), rawText(n))
				return
			case "ul", "ol":
				htmlList(b, n, listTypeOf(n))
				b.endList()
				return
			case "li":
				// Stray item outside a list.
				b.item(listBullet, textContent(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	res.Root = b.root
	return res, nil
}

// htmlList adds the items of a list, flattening nested lists after the item
// that contains them.
func htmlList(b *builder, n *html.Node, listType string) {
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		b.item(listType, textContent(li, "ul", "ol"))
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				htmlList(b, c, listTypeOf(c))
			}
		}
	}
}

func listTypeOf(n *html.Node) string {
	if n.Data == "ol" {
		return listNumber
	}
	return listBullet
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// textContent collects the text below n with whitespace collapsed, skipping
// the subtrees of any element named in skip.
func textContent(n *html.Node, skip ...string) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			for _, s := range skip {
				if n.Data == s {
					return
				}
			}
			if n.Data == "br" {
				buf.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extract(c)
	}
	return collapseSpace(buf.String())
}

// rawText collects the text below n verbatim.
func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimPrefix(buf.String(), "\n")
}

// codeLanguage reads a "language-x" or "lang-x" class from a <pre> or its
// <code> child.
func codeLanguage(pre *html.Node) string {
	nodes := []*html.Node{pre}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			nodes = append(nodes, c)
		}
	}
	for _, n := range nodes {
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, cls := range strings.Fields(a.Val) {
				for _, prefix := range []string{"language-", "lang-"} {
					if strings.HasPrefix(cls, prefix) {
						return strings.TrimPrefix(cls, prefix)
					}
				}
			}
		}
	}
	return ""
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
