package importer

import (
	"bufio"
	"io"
	"strings"
)

// TextImporter handles plain text files. Blank lines separate paragraphs and
// the lines of a paragraph are joined with spaces.
type TextImporter struct{}

func (p *TextImporter) Format() string { return "text" }

func (p *TextImporter) Import(r io.Reader, filename string) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newBuilder()
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				b.paragraph(current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(strings.TrimSpace(line))
		}
	}
	if current.Len() > 0 {
		b.paragraph(current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Result{Title: fileTitle(filename), Root: b.root}, nil
}
