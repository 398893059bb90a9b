package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const (
	rowHeight    = 7.0
	numberWidth  = 10.0
	bodyFontSize = 8.0
)

// PDF renders req with RowsPerPage records per page and the header row
// repeated on every page.
func (x *Exporter) PDF(w io.Writer, req Request) error {
	headers := req.headers()
	orientation := "P"
	if len(headers)-1 > landscapeAbove {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(false, 10)

	family := "Helvetica"
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	if x.FontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", x.FontPath)
		pdf.AddUTF8Font(family, "B", x.FontPath)
		translate = func(s string) string { return s }
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	widths := columnWidths(len(headers), pageWidth-left-right)

	pages := (len(req.Rows) + RowsPerPage - 1) / RowsPerPage
	if pages == 0 {
		pages = 1
	}
	for page := 0; page < pages; page++ {
		pdf.AddPage()
		if req.Title != "" {
			pdf.SetFont(family, "B", 12)
			pdf.CellFormat(0, 8, translate(req.Title), "", 1, "L", false, 0, "")
		}

		pdf.SetFont(family, "B", bodyFontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range headers {
			pdf.CellFormat(widths[i], rowHeight, fit(pdf, translate(h), widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(rowHeight)

		pdf.SetFont(family, "", bodyFontSize)
		start := page * RowsPerPage
		end := min(start+RowsPerPage, len(req.Rows))
		for i := start; i < end; i++ {
			for j, cell := range req.cells(i, req.Rows[i]) {
				pdf.CellFormat(widths[j], rowHeight, fit(pdf, translate(cell), widths[j]), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(rowHeight)
		}

		pdf.SetFont(family, "", 7)
		pdf.SetY(-10)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / %d", page+1, pages), "", 0, "R", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func columnWidths(n int, available float64) []float64 {
	widths := make([]float64, n)
	if n == 0 {
		return widths
	}
	widths[0] = numberWidth
	if n == 1 {
		return widths
	}
	each := (available - numberWidth) / float64(n-1)
	for i := 1; i < n; i++ {
		widths[i] = each
	}
	return widths
}

// fit trims text with an ellipsis until it fits in width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if pdf.GetStringWidth(candidate) <= limit {
			return candidate
		}
	}
	return ""
}
