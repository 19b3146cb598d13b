// Package importer converts uploaded files into rich-text documents that can
// be saved to the CMS.
package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsite/internal/richtext"
)

// Importer converts raw file bytes into a document tree.
type Importer interface {
	Import(r io.Reader, filename string) (*Result, error)
	// Format names the source format in logs and metrics.
	Format() string
}

// Result is an imported document. Title comes from the document itself when
// it names one, otherwise from the file name.
type Result struct {
	Title string
	Root  *richtext.Root
}

// Options tune individual importers.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the PDF library
	// cannot read a file.
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions that can be imported.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the importer for a filename.
func ForFile(filename string, opts Options) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextImporter{}, nil
	case ".md", ".markdown":
		return &MarkdownImporter{}, nil
	case ".csv":
		return &CSVImporter{}, nil
	case ".html", ".htm":
		return &HTMLImporter{}, nil
	case ".pdf":
		return &PDFImporter{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXImporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Import picks the importer for filename and runs it.
func Import(r io.Reader, filename string, opts Options) (*Result, error) {
	imp, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	return imp.Import(r, filename)
}

// fileTitle is the base name without its extension.
func fileTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// builder appends blocks to a root, dropping empty ones.
type builder struct {
	root *richtext.Root
	list *richtext.List
}

func newBuilder() *builder {
	return &builder{root: &richtext.Root{Children: []richtext.Node{}}}
}

func (b *builder) add(n richtext.Node) {
	b.list = nil
	b.root.Children = append(b.root.Children, n)
}

func (b *builder) heading(level int, text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.add(&richtext.Heading{Level: level, Children: textNodes(text)})
	}
}

func (b *builder) paragraph(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.add(&richtext.Paragraph{Children: textNodes(text)})
	}
}

func (b *builder) quote(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.add(&richtext.Quote{Children: textNodes(text)})
	}
}

func (b *builder) code(language, text string) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) != "" {
		b.add(&richtext.Code{Language: language, Children: textNodes(text)})
	}
}

// item appends a list item, continuing the current list when it has the same
// type and starting a new one otherwise.
func (b *builder) item(listType, text string) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	if b.list == nil || b.list.ListType != listType {
		l := &richtext.List{ListType: listType}
		b.add(l)
		b.list = l
	}
	b.list.Children = append(b.list.Children, &richtext.ListItem{Children: textNodes(text)})
}

// endList makes the next item start a new list.
func (b *builder) endList() {
	b.list = nil
}

func textNodes(s string) []richtext.Node {
	return []richtext.Node{&richtext.Text{Text: s}}
}

// collapseSpace folds whitespace runs, including newlines, into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// List types as stored by the editor.
const (
	listBullet = "bullet"
	listNumber = "number"
	listCheck  = "check"
)
