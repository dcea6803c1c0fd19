package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []Row {
	day := time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	return []Row{
		{
			StudentID:     "7d2c1a4e-0000-4000-8000-000000000001",
			Name:          "Ali, Khan",
			Class:         "Prep",
			PhoneNumber:   "0300-1234567",
			FeeStatus:     "paid",
			TotalFeesPaid: decimal.NewFromInt(5000),
			AdmissionDate: day,
			LastUpdated:   time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC),
		},
		{
			StudentID:     "7d2c1a4e-0000-4000-8000-000000000002",
			Name:          "Sara \"S\" Ahmed",
			Class:         "Class One",
			PhoneNumber:   "0300-7654321",
			FeeStatus:     "unpaid",
			TotalFeesPaid: decimal.Zero,
			AdmissionDate: day,
			LastUpdated:   day,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	out := buf.Bytes()
	require.True(t, len(out) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])

	records, err := csv.NewReader(bytes.NewReader(out[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Header, records[0])
	assert.Equal(t, "Ali, Khan", records[1][1])
	assert.Equal(t, "5000.00", records[1][5])
	assert.Equal(t, "2025-03-04T10:00:00Z", records[1][6])
	assert.Equal(t, "2025-03-14T15:09:26Z", records[1][7])
	assert.Equal(t, `Sara "S" Ahmed`, records[2][1])
	assert.Equal(t, "0.00", records[2][5])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "Prep", rows[1][2])
	assert.Equal(t, "5000.00", rows[1][5])
	assert.Equal(t, "2025-03-14T15:09:26Z", rows[1][7])

	width, err := f.GetColWidth(sheetName, "A")
	require.NoError(t, err)
	assert.Greater(t, width, 12.0)
}

func TestFormats(t *testing.T) {
	assert.True(t, ValidFormat("csv"))
	assert.True(t, ValidFormat("xlsx"))
	assert.True(t, ValidFormat("json"))
	assert.False(t, ValidFormat("pdf"))

	assert.Equal(t, "students.xlsx", Filename(FormatXLSX))
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(FormatCSV))
}
