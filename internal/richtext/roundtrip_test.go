package richtext

import (
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"pgregory.net/rapid"
)

type heading struct {
	level int
	text  string
}

type codeBlock struct {
	lang string
	body string
}

// outline is the structure a Markdown reader should be able to recover.
type outline struct {
	headings []heading
	items    []string
	code     []codeBlock
}

func words(t *rapid.T, label string) string {
	ws := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 4).Draw(t, label)
	return strings.Join(ws, " ")
}

// genBlock draws a block-level node no deeper than depth and records what a
// reader should see in want.
func genBlock(t *rapid.T, depth int, want *outline) Node {
	kinds := []string{"heading", "paragraph", "list", "code", "quote"}
	if depth > 1 {
		kinds = append(kinds, "wrapper")
	}

	switch rapid.SampledFrom(kinds).Draw(t, "kind") {
	case "heading":
		level := rapid.IntRange(0, 6).Draw(t, "level")
		s := words(t, "heading")
		rendered := level
		if rendered == 0 {
			rendered = 2
		}
		want.headings = append(want.headings, heading{level: rendered, text: s})
		return &Heading{Level: level, Children: []Node{txt(s)}}
	case "paragraph":
		return &Paragraph{Children: []Node{txt(words(t, "paragraph"))}}
	case "quote":
		return &Quote{Children: []Node{txt(words(t, "quote"))}}
	case "list":
		n := rapid.IntRange(1, 4).Draw(t, "items")
		l := &List{}
		for range n {
			s := words(t, "item")
			want.items = append(want.items, s)
			l.Children = append(l.Children, &ListItem{Children: []Node{txt(s)}})
		}
		return l
	case "code":
		lang := rapid.StringMatching(`[a-z]{0,5}`).Draw(t, "lang")
		body := words(t, "code")
		want.code = append(want.code, codeBlock{lang: lang, body: body})
		return &Code{Language: lang, Children: []Node{txt(body)}}
	}

	w := &Unknown{Type: "wrapper"}
	n := rapid.IntRange(0, 4).Draw(t, "wrapped")
	for range n {
		w.Children = append(w.Children, genBlock(t, depth-1, want))
	}
	return w
}

func readOutline(src []byte) outline {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var got outline
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			got.headings = append(got.headings, heading{level: v.Level, text: inlineOf(v, src)})
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			got.items = append(got.items, inlineOf(v, src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			var body strings.Builder
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				body.Write(seg.Value(src))
			}
			got.code = append(got.code, codeBlock{
				lang: string(v.Language(src)),
				body: strings.TrimSuffix(body.String(), "\n"),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return got
}

func inlineOf(n ast.Node, src []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Value(src))
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func TestMarkdown_RoundTripOutline(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var want outline
		root := &Root{}
		n := rapid.IntRange(0, 4).Draw(t, "blocks")
		for range n {
			root.Children = append(root.Children, genBlock(t, 2, &want))
		}

		out := Markdown(root)
		got := readOutline([]byte(out))

		if len(got.headings) != len(want.headings) {
			t.Fatalf("headings: expected %v, got %v\n%s", want.headings, got.headings, out)
		}
		for i := range want.headings {
			if got.headings[i] != want.headings[i] {
				t.Fatalf("heading %d: expected %v, got %v\n%s", i, want.headings[i], got.headings[i], out)
			}
		}

		if strings.Join(got.items, "|") != strings.Join(want.items, "|") {
			t.Fatalf("list items: expected %q, got %q\n%s", want.items, got.items, out)
		}

		if len(got.code) != len(want.code) {
			t.Fatalf("code blocks: expected %v, got %v\n%s", want.code, got.code, out)
		}
		for i := range want.code {
			if got.code[i] != want.code[i] {
				t.Fatalf("code %d: expected %v, got %v\n%s", i, want.code[i], got.code[i], out)
			}
		}
	})
}
