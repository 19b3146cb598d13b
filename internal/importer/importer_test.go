package importer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/docsite/internal/richtext"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.txt", "text"},
		{"a.MD", "markdown"},
		{"a.markdown", "markdown"},
		{"a.csv", "csv"},
		{"a.html", "html"},
		{"a.htm", "html"},
		{"a.pdf", "pdf"},
		{"a.docx", "docx"},
	}
	for _, tt := range tests {
		imp, err := ForFile(tt.filename, Options{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.filename, err)
		}
		if imp.Format() != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.filename, tt.want, imp.Format())
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("%s: expected supported", tt.filename)
		}
	}

	if _, err := ForFile("a.exe", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("noext") {
		t.Error("expected file without extension to be unsupported")
	}

	imp, _ := ForFile("a.pdf", Options{PDFFallbackPdftotext: true})
	if !imp.(*PDFImporter).FallbackPdftotext {
		t.Error("expected pdf fallback option to be applied")
	}
}

func TestImport_RoundTripsThroughLexical(t *testing.T) {
	res, err := Import(strings.NewReader("# Title\n\n## Part\n\n- x\n"), "t.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := richtext.Encode(res.Root)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := richtext.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := richtext.Markdown(back), "## Part\n\n- x"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCSVImporter(t *testing.T) {
	input := "name,role\nada,admin\nbob\n"
	res, err := (&CSVImporter{}).Import(strings.NewReader(input), "users.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "users" {
		t.Errorf("expected title %q, got %q", "users", res.Title)
	}
	want := "Columns: name, role\n\n- name: ada, role: admin\n- name: bob"
	if got := richtext.Markdown(res.Root); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCSVImporter_Empty(t *testing.T) {
	res, err := (&CSVImporter{}).Import(strings.NewReader(""), "none.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Root.IsEmpty() {
		t.Errorf("expected empty root")
	}
}

func TestClassifyStyle(t *testing.T) {
	tests := []struct {
		style string
		kind  styleKind
		level int
	}{
		{"", styleBody, 0},
		{"Normal", styleBody, 0},
		{"Title", styleTitle, 0},
		{"Heading1", styleHeading, 1},
		{"heading 3", styleHeading, 3},
		{"Heading9", styleBody, 0},
		{"ListBullet", styleList, 0},
		{"List Bullet 2", styleList, 0},
		{"ListParagraph", styleList, 0},
		{"List Number", styleNumbered, 0},
		{"Quote", styleQuote, 0},
		{"Intense Quote", styleQuote, 0},
		{"HTML Preformatted", styleCode, 0},
	}
	for _, tt := range tests {
		kind, level := classifyStyle(tt.style)
		if kind != tt.kind || level != tt.level {
			t.Errorf("classifyStyle(%q) = %d, %d; want %d, %d", tt.style, kind, level, tt.kind, tt.level)
		}
	}
}

func TestPDFTree(t *testing.T) {
	single := pdfTree("First para\nwraps.\n\nSecond para.")
	if got, want := richtext.Markdown(single), "First para wraps.\n\nSecond para."; got != want {
		t.Errorf("single page: expected %q, got %q", want, got)
	}

	multi := pdfTree("one\f\f  \ftwo")
	want := fmt.Sprintf("## Page %d\n\none\n\n## Page %d\n\ntwo", 1, 2)
	if got := richtext.Markdown(multi); got != want {
		t.Errorf("multi page: expected %q, got %q", want, got)
	}

	if !pdfTree("").IsEmpty() {
		t.Error("expected empty tree for empty text")
	}
}
