// Package measurement assembles an acquired trace with its correction chain and emissions
// limit, and stores it as a replicable CSV record.
package measurement

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roman-kulish/emctools/internal/calibration"
	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/limit"
	"github.com/roman-kulish/emctools/internal/spectrum"
)

// Column headers of the data table
const (
	ColumnFrequency = "Frequency (Hz)"
	ColumnRaw       = "DSA"
	ColumnCorrected = "Corrected"
	ColumnLimit     = "Limit"
)

var (
	// ErrDuplicateComponent is returned when a component name is already in use
	ErrDuplicateComponent = errors.New("duplicate component name")

	// ErrReservedName is returned when a component is named like a fixed column
	ErrReservedName = errors.New("reserved column name")

	// ErrReadOnly is returned when modifying a record loaded from storage
	ErrReadOnly = errors.New("record is read-only")
)

var reservedNames = []string{ColumnFrequency, ColumnRaw, ColumnCorrected, ColumnLimit}

// Record is one measurement: the raw trace, the calibration components applied to it in
// order, an optional limit and the instrument configuration that produced it.
//
// Records read from storage carry their factor, corrected and limit columns. Those values
// are returned as stored and never recomputed.
type Record struct {
	title  string
	config dsa.Config
	trace  spectrum.Trace

	components []*calibration.Table
	limit      *limit.Table

	loaded          bool
	cachedNames     []string
	cachedFactors   map[string][]float64
	cachedCorrected []float64
	cachedLimit     []float64
}

// New returns a record for a freshly acquired trace
func New(title string, config dsa.Config, trace spectrum.Trace) *Record {
	return &Record{
		title:  title,
		config: config,
		trace:  trace,
	}
}

func (r *Record) Title() string {
	return r.title
}

func (r *Record) Config() dsa.Config {
	return r.config
}

func (r *Record) Trace() spectrum.Trace {
	return r.trace
}

// Loaded reports whether the record was read from storage
func (r *Record) Loaded() bool {
	return r.loaded
}

// AddComponent appends a calibration table to the correction chain. Each component is
// applied to the output of the previous one.
func (r *Record) AddComponent(table *calibration.Table) error {
	if r.loaded {
		return ErrReadOnly
	}

	name := table.Name()
	if slices.Contains(reservedNames, name) {
		return fmt.Errorf("%w: '%s'", ErrReservedName, name)
	}
	if slices.Contains(r.ComponentNames(), name) {
		return fmt.Errorf("%w: '%s'", ErrDuplicateComponent, name)
	}

	r.components = append(r.components, table)
	return nil
}

// SetLimit attaches the emissions limit the trace is compared against
func (r *Record) SetLimit(table *limit.Table) error {
	if r.loaded {
		return ErrReadOnly
	}
	r.limit = table
	return nil
}

// Components returns the attached calibration tables in application order
func (r *Record) Components() []*calibration.Table {
	return slices.Clone(r.components)
}

// LimitTable returns the attached limit table, if any
func (r *Record) LimitTable() *limit.Table {
	return r.limit
}

// ComponentNames returns the names of the correction chain, including components only
// known from stored factor columns.
func (r *Record) ComponentNames() []string {
	if r.loaded {
		return slices.Clone(r.cachedNames)
	}

	names := make([]string, len(r.components))
	for i, c := range r.components {
		names[i] = c.Name()
	}
	return names
}

// Factors returns the factor of the named component at every trace frequency
func (r *Record) Factors(name string) ([]float64, bool) {
	if factors, ok := r.cachedFactors[name]; ok {
		return slices.Clone(factors), true
	}
	for _, c := range r.components {
		if c.Name() == name {
			return c.FactorAt(r.trace.Frequencies()), true
		}
	}
	return nil, false
}

// HasCorrected reports whether Corrected differs from the raw trace, i.e. a correction
// chain is attached or a corrected column was stored.
func (r *Record) HasCorrected() bool {
	return r.cachedCorrected != nil || len(r.components) > 0
}

// Corrected returns the raw amplitudes corrected by every component in order. Without
// components this is a copy of the raw amplitudes.
func (r *Record) Corrected() ([]float64, error) {
	if r.cachedCorrected != nil {
		return slices.Clone(r.cachedCorrected), nil
	}

	freqs := r.trace.Frequencies()
	values := r.trace.Amplitudes()
	for _, c := range r.components {
		var err error
		if values, err = c.ApplyValues(freqs, values); err != nil {
			return nil, fmt.Errorf("applying %s: %w", c.Name(), err)
		}
	}
	return values, nil
}

// Limit returns the limit at every trace frequency, or nil when there is none
func (r *Record) Limit() []float64 {
	if r.cachedLimit != nil {
		return slices.Clone(r.cachedLimit)
	}
	if r.limit == nil {
		return nil
	}
	return r.limit.ValueAt(r.trace.Frequencies())
}
