package limit

import (
	"maps"
	"slices"
)

// Table is the emissions limit of one standard expressed in one unit.
type Table struct {
	standard string
	unit     string
	rows     []row
	column   int
}

// New returns the limit table for the named standard and unit
func New(standard, unit string) (*Table, error) {
	rows, ok := tables[standard]
	if !ok {
		return nil, &UnknownStandardError{Standard: standard}
	}
	column, ok := unitColumns[unit]
	if !ok {
		return nil, &UnknownUnitError{Unit: unit}
	}

	return &Table{
		standard: standard,
		unit:     unit,
		rows:     rows,
		column:   column,
	}, nil
}

// Standards returns the names of the known standards, sorted
func Standards() []string {
	return slices.Sorted(maps.Keys(tables))
}

// Units returns the known units, sorted
func Units() []string {
	return slices.Sorted(maps.Keys(unitColumns))
}

func (t *Table) Standard() string {
	return t.standard
}

func (t *Table) Unit() string {
	return t.unit
}

// Range returns the span covered by the standard
func (t *Table) Range() (low, high float64) {
	return t.rows[0].low, t.rows[len(t.rows)-1].high
}

// ValueAt returns the limit at each frequency. A frequency belongs to the row whose
// (low, high] range contains it; the lowest boundary of the first row is included in
// that row. Frequencies outside the standard get 0, meaning no limit is defined.
func (t *Table) ValueAt(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	first := t.rows[0]
	for i, f := range freqs {
		if f == first.low {
			out[i] = first.values[t.column]
			continue
		}
		for _, r := range t.rows {
			if f > r.low && f <= r.high {
				out[i] = r.values[t.column]
				break
			}
		}
	}
	return out
}
