package report

import (
	"bytes"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"staffattendance/internal/attendance"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"No", 10},
	{"Name", 62},
	{"Date", 26},
	{"In", 20},
	{"Out", 20},
	{"Status", 24},
}

// PDF renders records as a printable A4 table under a title and period line.
func PDF(records []attendance.Record, title, period string, loc *time.Location) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 15)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(220, 230, 241)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(period), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range rows(records, loc) {
		if pdf.GetY()+6 > pageHeight-bottom-15 {
			pdf.AddPage()
			header()
		}
		cells := []string{strconv.Itoa(r.No), tr(r.Name), r.Date, r.CheckIn, r.CheckOut, r.Status}
		for i, c := range pdfColumns {
			align := "C"
			if i == 1 {
				align = "L"
			}
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(records) == 0 {
		pdf.CellFormat(0, 6, "No attendance records for this period.", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
