package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin = 14.0
	lineHeight = 5.0
)

// column widths in mm for an A4 portrait page
var columnWidths = []float64{24, 22, 58, 52, 26}

func WritePDF(w io.Writer, t *Table) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(pageMargin, 22, tr(t.Title))
	pdf.SetFont("Helvetica", "", 11)
	pdf.Text(pageMargin, 30, tr("Student: "+t.StudentName))
	pdf.Text(pageMargin, 36, tr("Student ID: "+t.StudentID))

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(41, 128, 185)
		pdf.SetTextColor(255, 255, 255)
		for i, c := range t.Columns {
			pdf.CellFormat(columnWidths[i], 8, tr(c), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.SetY(50)
	header()

	_, pageHeight := pdf.GetPageSize()
	for _, row := range t.Rows {
		lines := 1
		for i, cell := range row {
			if n := len(pdf.SplitText(tr(cell), columnWidths[i]-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines)*lineHeight + 2

		if pdf.GetY()+height > pageHeight-pageMargin {
			pdf.AddPage()
			header()
		}

		x, y := pdf.GetXY()
		for i, cell := range row {
			pdf.Rect(x, y, columnWidths[i], height, "D")
			pdf.SetXY(x+1, y+1)
			pdf.MultiCell(columnWidths[i]-2, lineHeight, tr(cell), "", "L", false)
			x += columnWidths[i]
		}
		pdf.SetXY(pageMargin, y+height)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
