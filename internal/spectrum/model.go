package spectrum

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrLengthMismatch is returned when frequency and amplitude slices differ in length
	ErrLengthMismatch = errors.New("frequency and amplitude counts differ")

	// ErrNotIncreasing is returned when the frequency axis is not strictly increasing
	ErrNotIncreasing = errors.New("frequencies are not strictly increasing")
)

// Point represents a single measurement at a specific frequency.
type Point struct {
	Frequency float64 `json:"frequency"` // Frequency in Hz
	Amplitude float64 `json:"amplitude"` // Amplitude in the analyzer's configured unit
}

// Trace is an ordered sequence of (frequency, amplitude) pairs produced by one acquisition.
// Frequencies are strictly increasing. A Trace is never mutated in place: corrections
// produce new amplitude slices.
type Trace struct {
	frequencies []float64
	amplitudes  []float64
}

// NewTrace validates and returns a trace. The slices are copied.
func NewTrace(frequencies, amplitudes []float64) (Trace, error) {
	if len(frequencies) != len(amplitudes) {
		return Trace{}, fmt.Errorf("%w: %d frequencies, %d amplitudes", ErrLengthMismatch, len(frequencies), len(amplitudes))
	}
	for i := 1; i < len(frequencies); i++ {
		if frequencies[i] <= frequencies[i-1] {
			return Trace{}, fmt.Errorf("%w: index %d (%g <= %g)", ErrNotIncreasing, i, frequencies[i], frequencies[i-1])
		}
	}

	return Trace{
		frequencies: slices.Clone(frequencies),
		amplitudes:  slices.Clone(amplitudes),
	}, nil
}

// Len returns the number of points in the trace
func (t Trace) Len() int {
	return len(t.frequencies)
}

// Frequencies returns a copy of the frequency axis in Hz
func (t Trace) Frequencies() []float64 {
	return slices.Clone(t.frequencies)
}

// Amplitudes returns a copy of the amplitudes
func (t Trace) Amplitudes() []float64 {
	return slices.Clone(t.amplitudes)
}

// WithAmplitudes returns a new trace sharing this trace's frequency axis.
func (t Trace) WithAmplitudes(amplitudes []float64) (Trace, error) {
	if len(amplitudes) != len(t.frequencies) {
		return Trace{}, fmt.Errorf("%w: %d frequencies, %d amplitudes", ErrLengthMismatch, len(t.frequencies), len(amplitudes))
	}
	return Trace{
		frequencies: t.frequencies,
		amplitudes:  slices.Clone(amplitudes),
	}, nil
}

// Points returns the trace as a slice of points
func (t Trace) Points() []Point {
	points := make([]Point, len(t.frequencies))
	for i := range t.frequencies {
		points[i] = Point{Frequency: t.frequencies[i], Amplitude: t.amplitudes[i]}
	}
	return points
}

// StartFrequency returns the first frequency, or 0 for an empty trace
func (t Trace) StartFrequency() float64 {
	if len(t.frequencies) == 0 {
		return 0
	}
	return t.frequencies[0]
}

// StopFrequency returns the last frequency, or 0 for an empty trace
func (t Trace) StopFrequency() float64 {
	if len(t.frequencies) == 0 {
		return 0
	}
	return t.frequencies[len(t.frequencies)-1]
}
