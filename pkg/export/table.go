// Package export renders small tables as CSV or PDF documents.
package export

import (
	"errors"
	"fmt"
)

// Formats supported by Render.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ErrUnsupportedFormat is returned for formats other than csv and pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Table is a titled grid of cells. Every row should have len(Columns) cells; missing cells
// render empty.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
	// Footer is printed under the table in PDF output only.
	Footer string
}

// File is a rendered document.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Render encodes t in the requested format. name is used without extension for the filename.
func Render(t Table, format, name string) (*File, error) {
	if len(t.Columns) == 0 {
		return nil, errors.New("export requires at least one column")
	}
	switch format {
	case FormatCSV:
		data, err := renderCSV(t)
		if err != nil {
			return nil, err
		}
		return &File{Filename: name + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	case FormatPDF:
		data, err := renderPDF(t)
		if err != nil {
			return nil, err
		}
		return &File{Filename: name + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
