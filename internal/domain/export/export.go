package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"staffbook/internal/domain/employee"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// RowsPerPage is the number of records on one PDF page.
const RowsPerPage = 20

// landscapeAbove switches PDF pages to landscape past this many columns.
const landscapeAbove = 6

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrUnknownColumn = errors.New("unknown export column")
	ErrNoColumns     = errors.New("export needs at least one column")
)

type Column struct {
	Field string
	Label string
}

// Request is everything one export renders. Custom columns get a header
// and empty cells.
type Request struct {
	Title   string
	Rows    []employee.Employee
	Columns []Column
	Custom  []string
}

func (r Request) headers() []string {
	out := make([]string, 0, 1+len(r.Columns)+len(r.Custom))
	out = append(out, "No.")
	for _, c := range r.Columns {
		out = append(out, c.Label)
	}
	return append(out, r.Custom...)
}

func (r Request) cells(index int, row employee.Employee) []string {
	out := make([]string, 0, 1+len(r.Columns)+len(r.Custom))
	out = append(out, fmt.Sprintf("%d", index+1))
	for _, c := range r.Columns {
		out = append(out, row.Field(c.Field))
	}
	for range r.Custom {
		out = append(out, "")
	}
	return out
}

// Columns resolves field names to labelled columns.
func Columns(fields []string) ([]Column, error) {
	out := make([]Column, 0, len(fields))
	for _, name := range fields {
		if name == "id" {
			out = append(out, Column{Field: "id", Label: "ID"})
			continue
		}
		f, ok := employee.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		out = append(out, Column{Field: f.Name, Label: f.Label})
	}
	return out, nil
}

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Exporter renders employee lists. FontPath, when set, points at a UTF-8
// TrueType font used for PDF output.
type Exporter struct {
	FontPath string
}

func New(fontPath string) *Exporter {
	return &Exporter{FontPath: fontPath}
}

func (x *Exporter) Export(w io.Writer, format Format, req Request) error {
	if len(req.Columns) == 0 && len(req.Custom) == 0 {
		return ErrNoColumns
	}
	switch format {
	case FormatPDF:
		return x.PDF(w, req)
	case FormatXLSX:
		return XLSX(w, req)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
