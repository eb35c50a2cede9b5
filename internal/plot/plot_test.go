package plot

import (
	"bytes"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/emctools/internal/calibration"
	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/limit"
	"github.com/roman-kulish/emctools/internal/measurement"
	"github.com/roman-kulish/emctools/internal/spectrum"
)

func record(t *testing.T) *measurement.Record {
	t.Helper()

	trace, err := spectrum.NewTrace(
		[]float64{10e6, 30e6, 100e6, 300e6, 1000e6},
		[]float64{12.3, 20, 31.7, 25, 18},
	)
	require.NoError(t, err)

	return measurement.New("Product X", dsa.DefaultConfig(), trace)
}

func TestChart_YRange(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		lo, hi float64
	}{
		{"rounded outward", []float64{12.3, 31.7}, 10, 35},
		{"already aligned", []float64{10, 35}, 10, 35},
		{"negative", []float64{-87.2, -41}, -90, -40},
		{"flat on a multiple", []float64{20, 20}, 15, 25},
		{"flat between multiples", []float64{21, 21}, 20, 25},
		{"nan ignored", []float64{math.NaN(), 3}, 0, 5},
		{"empty", nil, 0, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chart := Chart{Series: []Series{{Values: tc.values}}}
			lo, hi := chart.YRange()
			assert.Equal(t, tc.lo, lo)
			assert.Equal(t, tc.hi, hi)
		})
	}
}

func TestFromRecord(t *testing.T) {
	rec := record(t)

	chart, err := FromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, "Product X", chart.Title)
	assert.Equal(t, "Power (dBm)", chart.YLabel)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "Measured", chart.Series[0].Name)
	assert.Equal(t, []float64{12.3, 20, 31.7, 25, 18}, chart.Series[0].Values)
}

func TestFromRecord_CorrectedAndLimit(t *testing.T) {
	rec := record(t)

	gain, err := calibration.New("offset", calibration.KindAntennaFactor, []calibration.Point{
		{Frequency: 1e6, Factor: 10},
		{Frequency: 10e6, Factor: 10},
		{Frequency: 100e6, Factor: 10},
		{Frequency: 2000e6, Factor: 10},
	})
	require.NoError(t, err)
	require.NoError(t, rec.AddComponent(gain))

	lim, err := limit.New("cispr22classb", limit.UnitDBMicrovoltPerMeter3m)
	require.NoError(t, err)
	require.NoError(t, rec.SetLimit(lim))

	chart, err := FromRecord(rec)
	require.NoError(t, err)
	require.Len(t, chart.Series, 2)

	measured := chart.Series[0].Values
	assert.InDelta(t, 22.3, measured[0], 1e-9)
	assert.InDelta(t, 41.7, measured[2], 1e-9)

	limitValues := chart.Series[1].Values
	assert.Equal(t, measurement.ColumnLimit, chart.Series[1].Name)
	assert.True(t, math.IsNaN(limitValues[0]), "no limit below 30 MHz")
	assert.Equal(t, rec.Limit()[1:], limitValues[1:])
}

func TestCalculateNiceFrequencyStep(t *testing.T) {
	testCases := []struct {
		span  float64
		width int
		want  float64
	}{
		{990e6, 1100, 200e6},
		{100e6, 1200, 10e6},
		{3e6, 600, 1e6},
		{0, 600, 1},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, calculateNiceFrequencyStep(tc.span, tc.width))
	}
}

func TestFormatFrequency(t *testing.T) {
	assert.Equal(t, "30 MHz", formatFrequency(30e6))
	assert.Equal(t, "1.5 GHz", formatFrequency(1.5e9))
	assert.Equal(t, "2.5 kHz", formatFrequency(2500))
}

func TestRender(t *testing.T) {
	img, err := Render(record(t), RenderConfig{Width: 640, Height: 480})
	require.NoError(t, err)

	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	// the measured series shows up in its colour
	var found bool
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !found; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.RGBAAt(x, y) == MeasuredColor {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestNewRenderer_TooSmall(t *testing.T) {
	_, err := NewRenderer(RenderConfig{Width: 50, Height: 50})
	assert.Error(t, err)
}

func TestSavePNG(t *testing.T) {
	img, err := Render(record(t), RenderConfig{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, img))
	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, cfg.Width)
	assert.Equal(t, defaultHeight, cfg.Height)

	path := filepath.Join(t.TempDir(), "trace.png")
	require.NoError(t, SavePNG(path, img))
	assert.FileExists(t, path)
}
