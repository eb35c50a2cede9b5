package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/interp"

	"github.com/roman-kulish/emctools/internal/csvfile"
	"github.com/roman-kulish/emctools/internal/spectrum"
)

const (
	// MinPoints is the minimum number of samples a cubic spline can be fitted through
	MinPoints = 4

	columnFrequency = "Frequency"
)

// factorColumns are the accepted names of the second header column
var factorColumns = []string{"AF", "Factor"}

// Point is a single calibration sample
type Point struct {
	Frequency float64 // Hz
	Factor    float64 // dB
}

// Table stores the gain or loss factors of one RF component (antenna, cable, preamp)
// and corrects measurements for them. A Table is immutable once loaded.
type Table struct {
	name    string
	kind    Kind
	freqs   []float64
	factors []float64

	// the spline is fitted on frequencies mapped onto [0, 1]
	origin, scale float64
	spline        interp.NotAKnotCubic
	head, tail    endPiece
}

// endPiece is the cubic of the first or last spline interval, kept as four samples so it
// can be continued past the end knots.
type endPiece struct {
	xs, ys [4]float64
}

func newEndPiece(spline *interp.NotAKnotCubic, a, b float64) endPiece {
	var p endPiece
	for k := range 4 {
		x := a + (b-a)*float64(k)/3
		p.xs[k], p.ys[k] = x, spline.Predict(x)
	}
	return p
}

// at evaluates the cubic through the samples
func (p endPiece) at(x float64) float64 {
	var y float64
	for i := range 4 {
		l := 1.0
		for j := range 4 {
			if j != i {
				l *= (x - p.xs[j]) / (p.xs[i] - p.xs[j])
			}
		}
		y += p.ys[i] * l
	}
	return y
}

// LoadFile reads a calibration table from a CSV file. When name is empty the file's
// base name without extension is used.
func LoadFile(path, name string, kind Kind) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening calibration file: %w", err)
	}
	defer f.Close()

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return load(f, path, name, kind)
}

// Load reads a calibration table. Leading rows up to and including a header of
// `Frequency,AF` or `Frequency,Factor` are skipped; every following row must hold a
// frequency in Hz and a factor in dB.
func Load(r io.Reader, name string, kind Kind) (*Table, error) {
	return load(r, name, name, kind)
}

// New builds a table from points already in memory
func New(name string, kind Kind, points []Point) (*Table, error) {
	freqs := make([]float64, len(points))
	factors := make([]float64, len(points))
	for i, p := range points {
		freqs[i] = p.Frequency
		factors[i] = p.Factor
	}
	return build(name, name, kind, freqs, factors)
}

func load(r io.Reader, source, name string, kind Kind) (*Table, error) {
	// comment lines are free text, so they are matched line by line and never parsed as CSV
	scanner := bufio.NewScanner(r)
	var headerLine int
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		cells := strings.Split(text, ",")
		for i := range cells {
			cells[i] = strings.Trim(cells[i], "\" \t\r")
		}
		if isHeader(cells) {
			headerLine = line
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, csvfile.WrapFormatError(source, 0, "reading file", err)
	}
	if headerLine == 0 {
		return nil, csvfile.NewFormatError(source, 0,
			fmt.Sprintf("header '%s,%s' not found", columnFrequency, strings.Join(factorColumns, "|")))
	}

	var body strings.Builder
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, csvfile.WrapFormatError(source, 0, "reading file", err)
	}

	cr := csvfile.NewReader(strings.NewReader(body.String()))

	var freqs, factors []float64
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := csvfile.ErrorLine(err)
			if line > 0 {
				line += headerLine
			}
			return nil, csvfile.WrapFormatError(source, line, "reading row", err)
		}
		line, _ := cr.FieldPos(0)
		line += headerLine

		if csvfile.IsBlank(row) {
			continue
		}

		row = trimTrailingEmpty(row)
		if len(row) != 2 {
			return nil, csvfile.NewFormatError(source, line, fmt.Sprintf("expected 2 columns, got %d", len(row)))
		}
		values, _, err := csvfile.ParseFloats(row)
		if err != nil {
			return nil, csvfile.WrapFormatError(source, line, "non-numeric row", err)
		}

		freqs = append(freqs, values[0])
		factors = append(factors, values[1])
	}

	return build(source, name, kind, freqs, factors)
}

func build(source, name string, kind Kind, freqs, factors []float64) (*Table, error) {
	if _, ok := validKinds[kind]; !ok {
		return nil, fmt.Errorf("calibration: unknown kind '%s'", kind)
	}
	if len(freqs) < MinPoints {
		return nil, csvfile.NewDataError(source, 0,
			fmt.Sprintf("need at least %d points for a cubic spline, got %d", MinPoints, len(freqs)))
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			return nil, csvfile.NewDataError(source, 0,
				fmt.Sprintf("frequencies must be strictly increasing: %g follows %g", freqs[i], freqs[i-1]))
		}
	}

	t := Table{
		name:    name,
		kind:    kind,
		freqs:   slices.Clone(freqs),
		factors: slices.Clone(factors),
		origin:  freqs[0],
		scale:   freqs[len(freqs)-1] - freqs[0],
	}

	// raw Hz abscissae make the spline system singular
	xs := make([]float64, len(freqs))
	for i, f := range freqs {
		xs[i] = t.normalize(f)
	}
	if err := t.spline.Fit(xs, t.factors); err != nil {
		return nil, csvfile.NewDataError(source, 0, fmt.Sprintf("fitting spline: %s", err))
	}
	t.head = newEndPiece(&t.spline, xs[0], xs[1])
	t.tail = newEndPiece(&t.spline, xs[len(xs)-2], xs[len(xs)-1])

	return &t, nil
}

func isHeader(row []string) bool {
	for _, column := range factorColumns {
		if csvfile.RowEquals(trimTrailingEmpty(row), columnFrequency, column) {
			return true
		}
	}
	return false
}

func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	return row
}

// Name is the component name, used as the column header in measurement records
func (t *Table) Name() string {
	return t.name
}

func (t *Table) Kind() Kind {
	return t.kind
}

// StartFrequency is the lowest calibrated frequency
func (t *Table) StartFrequency() float64 {
	return t.freqs[0]
}

// StopFrequency is the highest calibrated frequency
func (t *Table) StopFrequency() float64 {
	return t.freqs[len(t.freqs)-1]
}

// Points returns a copy of the calibration samples
func (t *Table) Points() []Point {
	points := make([]Point, len(t.freqs))
	for i := range t.freqs {
		points[i] = Point{Frequency: t.freqs[i], Factor: t.factors[i]}
	}
	return points
}

func (t *Table) normalize(f float64) float64 {
	return (f - t.origin) / t.scale
}

// FactorAt returns the spline-interpolated factors at the given frequencies. The spline
// passes exactly through every sample. Frequencies outside the calibrated range are
// extrapolated by continuing the end cubic; staying in range is the caller's responsibility.
func (t *Table) FactorAt(freqs []float64) []float64 {
	out := make([]float64, len(freqs))
	lo, hi := t.StartFrequency(), t.StopFrequency()
	for i, f := range freqs {
		x := t.normalize(f)
		switch {
		case f < lo:
			out[i] = t.head.at(x)
		case f > hi:
			out[i] = t.tail.at(x)
		default:
			out[i] = t.spline.Predict(x)
		}
	}
	return out
}

// ApplyValues corrects values measured at freqs: losses and antenna factors are added,
// gains are subtracted. A new slice is returned.
func (t *Table) ApplyValues(freqs, values []float64) ([]float64, error) {
	if len(freqs) != len(values) {
		return nil, fmt.Errorf("%w: %d frequencies, %d values", spectrum.ErrLengthMismatch, len(freqs), len(values))
	}

	sign := t.kind.sign()
	factors := t.FactorAt(freqs)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = values[i] + sign*factors[i]
	}
	return out, nil
}

// Apply returns a corrected copy of the trace
func (t *Table) Apply(trace spectrum.Trace) (spectrum.Trace, error) {
	corrected, err := t.ApplyValues(trace.Frequencies(), trace.Amplitudes())
	if err != nil {
		return spectrum.Trace{}, err
	}
	return trace.WithAmplitudes(corrected)
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%s, %d points, %g-%g Hz)", t.name, t.kind, len(t.freqs), t.StartFrequency(), t.StopFrequency())
}
