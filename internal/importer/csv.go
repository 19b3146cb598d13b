package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVImporter handles CSV files. The header row becomes a paragraph and each
// data row a bullet item of "header: value" pairs.
type CSVImporter struct{}

func (p *CSVImporter) Format() string { return "csv" }

func (p *CSVImporter) Import(r io.Reader, filename string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	res := &Result{Title: fileTitle(filename)}
	b := newBuilder()
	res.Root = b.root
	if len(records) == 0 {
		return res, nil
	}

	headers := records[0]
	b.paragraph("Columns: " + strings.Join(headers, ", "))

	for _, row := range records[1:] {
		var text strings.Builder
		for j, cell := range row {
			if j > 0 {
				text.WriteString(", ")
			}
			if j < len(headers) && headers[j] != "" {
				text.WriteString(headers[j] + ": " + cell)
			} else {
				text.WriteString(cell)
			}
		}
		b.item(listBullet, text.String())
	}
	return res, nil
}
