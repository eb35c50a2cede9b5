package calibration

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/emctools/internal/csvfile"
	"github.com/roman-kulish/emctools/internal/spectrum"
)

func antenna(t *testing.T, kind Kind) *Table {
	t.Helper()

	table, err := New("Antenna", kind, []Point{
		{30e6, 10},
		{100e6, 12},
		{300e6, 15},
		{1000e6, 18},
	})
	require.NoError(t, err)
	return table
}

func TestLoadFile(t *testing.T) {
	table, err := LoadFile(filepath.Join("testdata", "ab900a.csv"), "", KindAntennaFactor)
	require.NoError(t, err)

	assert.Equal(t, "ab900a", table.Name())
	assert.Equal(t, KindAntennaFactor, table.Kind())
	assert.Equal(t, 30e6, table.StartFrequency())
	assert.Equal(t, 1000e6, table.StopFrequency())
	assert.Len(t, table.Points(), 8)

	preamp, err := LoadFile(filepath.Join("testdata", "preamp.csv"), "Preamp", KindGain)
	require.NoError(t, err)
	assert.Equal(t, "Preamp", preamp.Name())
	assert.Equal(t, 10e6, preamp.StartFrequency())
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		format bool
	}{
		{"missing header", "30e6,10\n100e6,12\n300e6,15\n1e9,18\n", true},
		{"wrong header", "Freq,AF\n30e6,10\n100e6,12\n300e6,15\n1e9,18\n", true},
		{"non-numeric row", "Frequency,AF\n30e6,10\n100e6,twelve\n300e6,15\n1e9,18\n", true},
		{"extra column", "Frequency,AF\n30e6,10,3\n100e6,12\n300e6,15\n1e9,18\n", true},
		{"too few points", "Frequency,AF\n30e6,10\n100e6,12\n300e6,15\n", false},
		{"duplicate frequency", "Frequency,AF\n30e6,10\n100e6,12\n100e6,15\n1e9,18\n", false},
		{"decreasing frequency", "Frequency,AF\n30e6,10\n300e6,12\n100e6,15\n1e9,18\n", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.input), "test", KindLoss)
			require.Error(t, err)

			var formatErr *csvfile.FormatError
			var dataErr *csvfile.DataError
			if tc.format {
				assert.True(t, errors.As(err, &formatErr), "expected FormatError, got %v", err)
			} else {
				assert.True(t, errors.As(err, &dataErr), "expected DataError, got %v", err)
			}
		})
	}
}

func TestLoad_FormatErrorLine(t *testing.T) {
	_, err := Load(strings.NewReader("comment\nFrequency,Factor\n1,2\nx,3\n"), "cable.csv", KindLoss)

	var formatErr *csvfile.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 4, formatErr.Line)
}

func TestLoad_SkipsBlankAndTrailingCells(t *testing.T) {
	input := "Frequency,Factor,\n30e6,1,\n\n100e6,2\n300e6,3,\n1e9,4\n"

	table, err := Load(strings.NewReader(input), "cable", KindLoss)
	require.NoError(t, err)
	assert.Len(t, table.Points(), 4)
}

func TestFactorAt_ExactAtKnots(t *testing.T) {
	table, err := LoadFile(filepath.Join("testdata", "ab900a.csv"), "", KindAntennaFactor)
	require.NoError(t, err)

	points := table.Points()
	freqs := make([]float64, len(points))
	for i, p := range points {
		freqs[i] = p.Frequency
	}

	factors := table.FactorAt(freqs)
	for i, p := range points {
		assert.InDelta(t, p.Factor, factors[i], 1e-9, "knot %d at %g Hz", i, p.Frequency)
	}
}

func TestFactorAt_ReproducesCubic(t *testing.T) {
	// a not-a-knot spline fitted through a cubic reproduces it exactly
	cubic := func(x float64) float64 { return 0.5*x*x*x - 2*x*x + x + 3 }

	var points []Point
	for x := 0.0; x <= 6; x++ {
		points = append(points, Point{Frequency: x, Factor: cubic(x)})
	}
	table, err := New("cubic", KindLoss, points)
	require.NoError(t, err)

	for _, x := range []float64{0.5, 1.25, 2.5, 4.75, 5.9} {
		assert.InDelta(t, cubic(x), table.FactorAt([]float64{x})[0], 1e-9, "x=%g", x)
	}
}

func TestFactorAt_ContinuesEndCubic(t *testing.T) {
	// four samples define a single cubic, which is continued on both sides
	table, err := New("cube", KindLoss, []Point{{1, 1}, {2, 8}, {3, 27}, {4, 64}})
	require.NoError(t, err)

	got := table.FactorAt([]float64{0, 5, 6})
	assert.InDeltaSlice(t, []float64{0, 125, 216}, got, 1e-6)

	for _, v := range got {
		assert.False(t, math.IsNaN(v))
	}
}

func TestFactorAt_ContinuesEndPieces(t *testing.T) {
	// piecewise data: each side continues its own end interval
	cubic := func(x float64) float64 { return 0.5*x*x*x - 2*x*x + x + 3 }

	var points []Point
	for x := 0.0; x <= 6; x++ {
		points = append(points, Point{Frequency: x * 1e8, Factor: cubic(x)})
	}
	table, err := New("cubic", KindLoss, points)
	require.NoError(t, err)

	got := table.FactorAt([]float64{-1e8, 7e8})
	assert.InDelta(t, cubic(-1), got[0], 1e-6)
	assert.InDelta(t, cubic(7), got[1], 1e-6)
}

func TestNew_HertzScale(t *testing.T) {
	table, err := New("ant", KindLoss, []Point{{30e6, 10}, {100e6, 12}, {300e6, 15}, {1000e6, 18}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{10, 12, 15, 18}, table.FactorAt([]float64{30e6, 100e6, 300e6, 1000e6}), 1e-9)

	between := table.FactorAt([]float64{200e6})[0]
	assert.Greater(t, between, 12.0)
	assert.Less(t, between, 15.0)
}

func TestLoad_QuotedCommentLines(t *testing.T) {
	input := "Antenna factors,\"AB-900A\" biconical\n" +
		"note: \"unbalanced quote\n" +
		"\"Frequency\",\"AF\"\n" +
		"30e6,10\n100e6,12\n300e6,15\n1e9,18\n"

	table, err := Load(strings.NewReader(input), "ant", KindAntennaFactor)
	require.NoError(t, err)
	assert.Len(t, table.Points(), 4)

	_, err = Load(strings.NewReader("\"open\nFrequency,AF\n30e6,10\n1e8,x\n"), "ant", KindAntennaFactor)
	var formatErr *csvfile.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, 4, formatErr.Line)
}

func TestApply_SignConvention(t *testing.T) {
	trace, err := spectrum.NewTrace([]float64{30e6, 100e6, 300e6, 1000e6}, []float64{5, 5, 5, 5})
	require.NoError(t, err)

	testCases := []struct {
		kind Kind
		want []float64
	}{
		{KindLoss, []float64{15, 17, 20, 23}},
		{KindAntennaFactor, []float64{15, 17, 20, 23}},
		{KindGain, []float64{-5, -7, -10, -13}},
	}

	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			corrected, err := antenna(t, tc.kind).Apply(trace)
			require.NoError(t, err)

			assert.InDeltaSlice(t, tc.want, corrected.Amplitudes(), 1e-9)
			assert.Equal(t, trace.Frequencies(), corrected.Frequencies())
			assert.Equal(t, []float64{5, 5, 5, 5}, trace.Amplitudes(), "input must not be modified")
		})
	}
}

func TestApplyValues_LengthMismatch(t *testing.T) {
	_, err := antenna(t, KindLoss).ApplyValues([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, spectrum.ErrLengthMismatch)
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"antenna_factor", "loss", "gain"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, s, k.String())
	}

	_, err := ParseKind("attenuator")
	assert.Error(t, err)

	_, err = New("x", Kind("bogus"), []Point{{1, 1}, {2, 2}, {3, 3}, {4, 4}})
	assert.Error(t, err)
}
