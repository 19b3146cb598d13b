package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXImporter handles .docx files. Paragraph styles decide the block type:
// Title names the document, "Heading N" makes headings, list and quote
// styles make list items and quotes.
type DOCXImporter struct{}

func (p *DOCXImporter) Format() string { return "docx" }

func (p *DOCXImporter) Import(r io.Reader, filename string) (*Result, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docsite-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	res := &Result{Title: fileTitle(filename)}
	b := newBuilder()
	titled := false

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}

		style := docxStyle(para)
		switch kind, level := classifyStyle(style); kind {
		case styleTitle:
			if !titled {
				res.Title = text
				titled = true
				continue
			}
			b.heading(1, text)
		case styleHeading:
			b.heading(level, text)
		case styleList:
			b.item(listBullet, text)
		case styleNumbered:
			b.item(listNumber, text)
		case styleQuote:
			b.quote(text)
		case styleCode:
			b.code("", text)
		default:
			b.paragraph(text)
		}
	}

	res.Root = b.root
	return res, nil
}

type styleKind int

const (
	styleBody styleKind = iota
	styleTitle
	styleHeading
	styleList
	styleNumbered
	styleQuote
	styleCode
)

// classifyStyle maps a paragraph style id or name to a block kind. Word
// writes ids without spaces ("Heading1") and other editors often write the
// display name ("heading 1").
func classifyStyle(style string) (styleKind, int) {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "":
		return styleBody, 0
	case s == "title":
		return styleTitle, 0
	case strings.HasPrefix(s, "heading"):
		n := strings.TrimPrefix(s, "heading")
		if len(n) == 1 && n[0] >= '1' && n[0] <= '6' {
			return styleHeading, int(n[0] - '0')
		}
		return styleBody, 0
	case strings.HasPrefix(s, "listnumber"):
		return styleNumbered, 0
	case strings.HasPrefix(s, "listbullet"), s == "listparagraph":
		return styleList, 0
	case s == "quote", s == "intensequote":
		return styleQuote, 0
	case s == "code", s == "htmlpreformatted", s == "sourcecode":
		return styleCode, 0
	}
	return styleBody, 0
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
