// Package csvfile holds the pieces shared by the comma-separated file formats:
// calibration tables and measurement records.
package csvfile

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// NewReader returns a csv.Reader configured for the loosely structured files we read:
// rows may have any width and cells are trimmed by the caller.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	return cr
}

// TrimRow trims surrounding white space from every cell in place and returns the row.
func TrimRow(row []string) []string {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	return row
}

// IsBlank reports whether the row has no non-empty cells
func IsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// RowEquals reports whether the trimmed row equals want, cell by cell.
func RowEquals(row []string, want ...string) bool {
	if len(row) != len(want) {
		return false
	}
	for i := range row {
		if strings.TrimSpace(row[i]) != want[i] {
			return false
		}
	}
	return true
}

// ParseFloats parses every cell of the row as a float64.
// The index of the first offending cell is returned with the error.
func ParseFloats(row []string) ([]float64, int, error) {
	values := make([]float64, len(row))
	for i, cell := range row {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, i, err
		}
		values[i] = v
	}
	return values, -1, nil
}

// FormatFloat formats v in the shortest form that parses back to the same value.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ErrorLine returns the line number carried by a csv.ParseError, or 0.
func ErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
