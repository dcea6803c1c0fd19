// Package export renders student fee reports as CSV, JSON rows or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// bom makes spreadsheet applications read the file as UTF-8.
var bom = []byte{0xEF, 0xBB, 0xBF}

var Header = []string{
	"Student ID",
	"Name",
	"Class",
	"Phone Number",
	"Fee Status",
	"Total Fees Paid",
	"Admission Date",
	"Last Updated",
}

// Row is one exported student.
type Row struct {
	StudentID     string          `json:"studentId"`
	Name          string          `json:"name"`
	Class         string          `json:"class"`
	PhoneNumber   string          `json:"phoneNumber"`
	FeeStatus     string          `json:"feeStatus"`
	TotalFeesPaid decimal.Decimal `json:"totalFeesPaid"`
	AdmissionDate time.Time       `json:"admissionDate"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

func (r Row) record() []string {
	return []string{
		r.StudentID,
		r.Name,
		r.Class,
		r.PhoneNumber,
		r.FeeStatus,
		r.TotalFeesPaid.StringFixed(2),
		r.AdmissionDate.UTC().Format(time.RFC3339),
		r.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// ValidFormat reports whether format is one of the supported formats.
func ValidFormat(format string) bool {
	return format == FormatCSV || format == FormatJSON || format == FormatXLSX
}

// Filename is the attachment name for a download in format.
func Filename(format string) string {
	return "students." + format
}

func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}

// WriteCSV writes a BOM, the header and one line per row.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const sheetName = "Students"

// WriteXLSX writes a single-sheet workbook with a bold, filterable header.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(Header))
	for c, h := range Header {
		if err := setCell(f, c, 1, h); err != nil {
			return err
		}
		widths[c] = len(h)
	}

	for r, row := range rows {
		for c, v := range row.record() {
			if err := setCell(f, c, r+2, v); err != nil {
				return err
			}
			if l := len([]rune(v)); l > widths[c] {
				widths[c] = l
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last+"1", bold); err != nil {
		return err
	}
	if err := f.AutoFilter(sheetName, "A1:"+last+"1", nil); err != nil {
		return err
	}

	for c, width := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheetName, col, col, columnWidth(width)); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func setCell(f *excelize.File, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	if err := f.SetCellStr(sheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func columnWidth(chars int) float64 {
	w := float64(chars)*1.1 + 2
	if w < 12 {
		return 12
	}
	if w > 60 {
		return 60
	}
	return w
}
