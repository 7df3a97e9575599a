// Package report renders attendance records as downloadable documents.
package report

import (
	"fmt"
	"strings"
	"time"

	"staffattendance/internal/attendance"
)

// Format is an export file type.
type Format string

const (
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
)

// ParseFormat accepts "excel", "xlsx" and "pdf".
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "excel", "xlsx", "":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported report format %q", v)
}

// Extension is the file extension for f.
func (f Format) Extension() string {
	if f == FormatPDF {
		return "pdf"
	}
	return "xlsx"
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names a monthly export, e.g. attendance_March_2024.xlsx.
func Filename(f Format, year int, month time.Month) string {
	return fmt.Sprintf("attendance_%s_%d.%s", month.String(), year, f.Extension())
}

// Period is the human label for a month, e.g. "March 2024".
func Period(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month.String(), year)
}

// row is one rendered line shared by every format.
type row struct {
	No       int
	Name     string
	Date     string
	CheckIn  string
	CheckOut string
	Status   string
	IP       string
}

func rows(records []attendance.Record, loc *time.Location) []row {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]row, len(records))
	for i, r := range records {
		name := r.FullName
		if name == "" {
			name = "-"
		}
		ip := "-"
		if r.IPAddress != nil && *r.IPAddress != "" {
			ip = *r.IPAddress
		}
		out[i] = row{
			No:       i + 1,
			Name:     name,
			Date:     r.Date,
			CheckIn:  clockTime(r.CheckIn, loc),
			CheckOut: clockTime(r.CheckOut, loc),
			Status:   r.Status.Label(),
			IP:       ip,
		}
	}
	return out
}

func clockTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("15:04")
}
