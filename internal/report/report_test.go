package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"staffattendance/internal/attendance"
)

var wib = time.FixedZone("WIB", 7*60*60)

func sampleRecords() []attendance.Record {
	in := time.Date(2024, time.March, 4, 0, 5, 0, 0, time.UTC) // 07:05 WIB
	out := time.Date(2024, time.March, 4, 7, 30, 0, 0, time.UTC)
	ip := "10.0.0.1"
	return []attendance.Record{
		{ID: "r-1", FullName: "Siti Rahma", Date: "2024-03-04", CheckIn: &in, CheckOut: &out, Status: attendance.StatusLate, IPAddress: &ip},
		{ID: "r-2", Date: "2024-03-05", CheckIn: &in, Status: attendance.StatusPresent},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatExcel, "xlsx": FormatExcel, "Excel": FormatExcel, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "attendance_March_2024.xlsx", Filename(FormatExcel, 2024, time.March))
	assert.Equal(t, "attendance_December_2023.pdf", Filename(FormatPDF, 2023, time.December))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestRowsRenderInSchoolZone(t *testing.T) {
	got := rows(sampleRecords(), wib)
	require.Len(t, got, 2)
	assert.Equal(t, row{No: 1, Name: "Siti Rahma", Date: "2024-03-04", CheckIn: "07:05", CheckOut: "14:30", Status: "Late", IP: "10.0.0.1"}, got[0])
	assert.Equal(t, row{No: 2, Name: "-", Date: "2024-03-05", CheckIn: "07:05", CheckOut: "-", Status: "Present", IP: "-"}, got[1])
}

func TestExcel(t *testing.T) {
	data, err := Excel(sampleRecords(), "March 2024", wib)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"March 2024"}, f.GetSheetList())
	header, err := f.GetCellValue("March 2024", "G1")
	require.NoError(t, err)
	assert.Equal(t, "IP Address", header)

	name, err := f.GetCellValue("March 2024", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Siti Rahma", name)

	status, err := f.GetCellValue("March 2024", "F3")
	require.NoError(t, err)
	assert.Equal(t, "Present", status)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Attendance", sheetName("  "))
	assert.Equal(t, "03-2024", sheetName("03/2024"))
	assert.Len(t, []rune(sheetName("a very long sheet name that goes past the limit")), 31)
}

func TestPDF(t *testing.T) {
	data, err := PDF(sampleRecords(), "Teacher Attendance Report", "March 2024", wib)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	empty, err := PDF(nil, "Teacher Attendance Report", "March 2024", wib)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}
