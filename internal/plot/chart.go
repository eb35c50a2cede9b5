package plot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/roman-kulish/emctools/internal/measurement"
)

// yStep is the granularity the amplitude axis is rounded to
const yStep = 5.0

var (
	MeasuredColor = color.RGBA{R: 0x1f, G: 0x3f, B: 0xd0, A: 0xff}
	LimitColor    = color.RGBA{R: 0xd0, G: 0x20, B: 0x20, A: 0xff}
	GridColor     = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
)

// Series is one line of a chart. NaN values leave a gap.
type Series struct {
	Name   string
	Values []float64
	Color  color.Color
}

// Chart is a set of series over a common frequency axis
type Chart struct {
	Title       string
	XLabel      string
	YLabel      string
	Frequencies []float64
	Series      []Series
}

// FromRecord charts the corrected trace, or the raw trace when no correction applies,
// with the limit if the record has one. Limit points outside the standard are not drawn.
func FromRecord(rec *measurement.Record) (*Chart, error) {
	measured, err := rec.Corrected()
	if err != nil {
		return nil, fmt.Errorf("computing corrected trace: %w", err)
	}

	yLabel := "Power"
	if units := rec.Config().Units; units != nil {
		yLabel = fmt.Sprintf("Power (%s)", units.Label())
	}

	chart := Chart{
		Title:       rec.Title(),
		XLabel:      measurement.ColumnFrequency,
		YLabel:      yLabel,
		Frequencies: rec.Trace().Frequencies(),
		Series:      []Series{{Name: "Measured", Values: measured, Color: MeasuredColor}},
	}

	if lim := rec.Limit(); lim != nil {
		for i, v := range lim {
			if v == 0 {
				lim[i] = math.NaN()
			}
		}
		chart.Series = append(chart.Series, Series{Name: measurement.ColumnLimit, Values: lim, Color: LimitColor})
	}

	return &chart, nil
}

// YRange returns the amplitude axis bounds: the data range rounded outward to a multiple
// of 5. A flat or empty data set still gets a non-empty range.
func (c *Chart) YRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range c.Series {
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, yStep
	}

	lo = math.Floor(lo/yStep) * yStep
	hi = math.Ceil(hi/yStep) * yStep
	if lo == hi {
		lo, hi = lo-yStep, hi+yStep
	}
	return lo, hi
}

// XRange returns the first and last frequency
func (c *Chart) XRange() (lo, hi float64) {
	if len(c.Frequencies) == 0 {
		return 0, 1
	}
	lo, hi = c.Frequencies[0], c.Frequencies[len(c.Frequencies)-1]
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}
