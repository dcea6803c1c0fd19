package student

import (
	"net/url"
	"strconv"
	"strings"
)

// ListFilter selects and orders students. Zero values match everything.
type ListFilter struct {
	Class     string
	FeeStatus FeeStatus
	Month     string
	Year      int
	SortBy    string
	SortOrder string
}

// ExportFilter selects the students and the billing period of an export.
type ExportFilter struct {
	Class     string
	FeeStatus FeeStatus
	Month     string
	Year      int
}

func (f ExportFilter) ListFilter() ListFilter {
	return ListFilter{
		Class:     f.Class,
		FeeStatus: f.FeeStatus,
		Month:     f.Month,
		Year:      f.Year,
	}
}

// sortColumns maps the API sort fields onto table columns. Sorting compares
// bytes, so "Zed" orders before "alice" whatever the database collation is.
var sortColumns = map[string]string{
	"name":      `s.name COLLATE "C"`,
	"class":     `s.class COLLATE "C"`,
	"feeStatus": `s.fee_status COLLATE "C"`,
}

// ParseListFilter reads the list query string. Values that cannot be parsed
// are dropped rather than rejected.
func ParseListFilter(q url.Values) ListFilter {
	year, _ := strconv.Atoi(strings.TrimSpace(q.Get("year")))
	return ListFilter{
		Class:     q.Get("class"),
		FeeStatus: FeeStatus(q.Get("feeStatus")),
		Month:     q.Get("month"),
		Year:      year,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}.Normalize()
}

func ParseExportFilter(q url.Values) ExportFilter {
	f := ParseListFilter(q)
	return ExportFilter{
		Class:     f.Class,
		FeeStatus: f.FeeStatus,
		Month:     f.Month,
		Year:      f.Year,
	}
}

// Normalize clears every field holding a value the store cannot match on.
func (f ListFilter) Normalize() ListFilter {
	if !f.FeeStatus.Valid() {
		f.FeeStatus = ""
	}
	if MonthNumber(f.Month) == 0 || f.Year <= 0 {
		f.Month = ""
		f.Year = 0
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = ""
		f.SortOrder = ""
	}
	if f.SortBy != "" && f.SortOrder != "desc" {
		f.SortOrder = "asc"
	}
	return f
}

// HasPeriod reports whether attached fee records are restricted to one month.
func (f ListFilter) HasPeriod() bool {
	return f.Month != "" && f.Year > 0
}

func (f ListFilter) orderExpr() string {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		return "s.created_at ASC, s.id ASC"
	}
	if f.SortOrder == "desc" {
		return column + " DESC, s.id ASC"
	}
	return column + " ASC, s.id ASC"
}
