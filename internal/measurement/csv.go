package measurement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/roman-kulish/emctools/internal/csvfile"
	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/spectrum"
)

// WriteCSV writes the record: the title row, the JSON encoded setting names and values,
// the column headers and one row per frequency.
func (r *Record) WriteCSV(w io.Writer) error {
	names, values, err := r.config.Encode()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	header := []string{ColumnFrequency, ColumnRaw}
	columns := [][]float64{r.trace.Frequencies(), r.trace.Amplitudes()}

	for _, name := range r.ComponentNames() {
		factors, _ := r.Factors(name)
		header = append(header, name)
		columns = append(columns, factors)
	}
	if r.HasCorrected() {
		corrected, err := r.Corrected()
		if err != nil {
			return err
		}
		header = append(header, ColumnCorrected)
		columns = append(columns, corrected)
	}
	if lim := r.Limit(); lim != nil {
		header = append(header, ColumnLimit)
		columns = append(columns, lim)
	}

	cw := csv.NewWriter(w)
	if err = cw.WriteAll([][]string{{r.title}, names, values, header}); err != nil {
		return fmt.Errorf("writing record header: %w", err)
	}

	row := make([]string, len(columns))
	for i := range r.trace.Len() {
		for j, column := range columns {
			row[j] = csvfile.FormatFloat(column[i])
		}
		if err = cw.Write(row); err != nil {
			return fmt.Errorf("writing record row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err = cw.Error(); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// SaveCSV writes the record to path
func (r *Record) SaveCSV(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating record file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return r.WriteCSV(f)
}

// LoadCSV reads a record from path
func LoadCSV(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	return readCSV(f, path)
}

// ReadCSV reads a record written by WriteCSV. Columns are looked up by header name.
// Blank title or configuration rows are tolerated.
func ReadCSV(r io.Reader) (*Record, error) {
	return readCSV(r, "record")
}

func readCSV(r io.Reader, source string) (*Record, error) {
	rows, lines, err := readRows(r, source)
	if err != nil {
		return nil, err
	}

	h := slices.IndexFunc(rows, func(row []string) bool {
		return slices.Contains(csvfile.TrimRow(slices.Clone(row)), ColumnFrequency)
	})
	if h < 0 {
		return nil, csvfile.NewFormatError(source, 0, fmt.Sprintf("header row with '%s' not found", ColumnFrequency))
	}
	if h > 3 {
		return nil, csvfile.NewFormatError(source, lines[h], "unexpected rows before the header")
	}

	// encoding/csv skips blank lines, so an empty title or configuration leaves fewer rows
	rec := Record{loaded: true}
	var names, values []string
	switch h {
	case 3:
		rec.title, names, values = firstCell(rows[0]), rows[1], rows[2]
	case 2:
		names, values = rows[0], rows[1]
	case 1:
		rec.title = firstCell(rows[0])
	}

	if rec.config, err = dsa.Decode(trimEmpty(names), trimEmpty(values)); err != nil {
		return nil, csvfile.WrapFormatError(source, lines[max(h-1, 0)], "decoding instrument config", err)
	}

	columns, err := readColumns(rows[h], rows[h+1:], lines[h:], source)
	if err != nil {
		return nil, err
	}

	freqs, ok := columns[ColumnFrequency]
	if !ok {
		return nil, csvfile.NewFormatError(source, lines[h], fmt.Sprintf("missing column '%s'", ColumnFrequency))
	}
	raw, ok := columns[ColumnRaw]
	if !ok {
		return nil, csvfile.NewFormatError(source, lines[h], fmt.Sprintf("missing column '%s'", ColumnRaw))
	}

	if rec.trace, err = spectrum.NewTrace(freqs, raw); err != nil {
		return nil, csvfile.NewDataError(source, lines[h], err.Error())
	}

	rec.cachedCorrected = columns[ColumnCorrected]
	rec.cachedLimit = columns[ColumnLimit]
	rec.cachedFactors = make(map[string][]float64)
	for _, name := range csvfile.TrimRow(slices.Clone(rows[h])) {
		if slices.Contains(reservedNames, name) {
			continue
		}
		rec.cachedNames = append(rec.cachedNames, name)
		rec.cachedFactors[name] = columns[name]
	}

	return &rec, nil
}

func readRows(r io.Reader, source string) (rows [][]string, lines []int, err error) {
	cr := csvfile.NewReader(r)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, csvfile.WrapFormatError(source, csvfile.ErrorLine(err), "reading row", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return rows, lines, nil
}

// readColumns parses the data rows into columns keyed by header name
func readColumns(header []string, data [][]string, lines []int, source string) (map[string][]float64, error) {
	header = csvfile.TrimRow(slices.Clone(header))

	index := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			return nil, csvfile.NewFormatError(source, lines[0], fmt.Sprintf("empty header in column %d", i+1))
		}
		if _, ok := index[name]; ok {
			return nil, csvfile.NewFormatError(source, lines[0], fmt.Sprintf("duplicate column '%s'", name))
		}
		index[name] = i
	}

	columns := make(map[string][]float64, len(header))
	for _, name := range header {
		columns[name] = make([]float64, 0, len(data))
	}

	for i, row := range data {
		line := lines[i+1]
		if csvfile.IsBlank(row) {
			continue
		}
		if len(row) != len(header) {
			return nil, csvfile.NewFormatError(source, line, fmt.Sprintf("expected %d columns, got %d", len(header), len(row)))
		}
		values, col, err := csvfile.ParseFloats(row)
		if err != nil {
			return nil, csvfile.WrapFormatError(source, line, fmt.Sprintf("non-numeric value in column '%s'", header[col]), err)
		}
		for name, j := range index {
			columns[name] = append(columns[name], values[j])
		}
	}

	return columns, nil
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// trimEmpty drops trailing empty cells left by spreadsheet editors
func trimEmpty(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
