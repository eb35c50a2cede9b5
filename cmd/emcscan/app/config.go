package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/emctools/internal/calibration"
	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/sweep"
)

const (
	DefaultTitle         = "Product X Radiated Emissions"
	DefaultAntenna       = "afe/ab900a.csv"
	DefaultLimitStandard = "cispr22classb"
	DefaultLimitUnits    = "dBuV/m(3m)"
	DefaultSpan          = 100e6
	DefaultSweeps        = 10
)

// Duration is a time.Duration written as a string such as "1s" or "250ms"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: parsing duration: %w", value.Line, err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ComponentConfig names one calibration table of the measurement chain
type ComponentConfig struct {
	Name string           `yaml:"name" json:"name,omitempty"`
	File string           `yaml:"file" json:"file"`
	Kind calibration.Kind `yaml:"kind" json:"kind"`
}

// Params holds the measurement parameters
type Params struct {
	Title     string `yaml:"title" json:"title"`
	OutputDir string `yaml:"output_dir" json:"output_dir,omitempty"`
	LogLevel  string `yaml:"log_level" json:"log_level,omitempty"`

	// Resource is a VISA-style resource name. The first discovered instrument is used when empty.
	Resource string `yaml:"resource" json:"resource,omitempty"`
	BaudRate int    `yaml:"baud_rate" json:"baud_rate,omitempty"`

	// Antenna is a single antenna factor table, applied before Components
	Antenna    string            `yaml:"antenna" json:"antenna,omitempty"`
	Components []ComponentConfig `yaml:"components" json:"components,omitempty"`

	LimitStandard string `yaml:"limit_std" json:"limit_std,omitempty"`
	LimitUnits    string `yaml:"limit_units" json:"limit_units,omitempty"`

	StartFrequency *float64 `yaml:"start_freq" json:"start_freq,omitempty"` // Hz
	StopFrequency  *float64 `yaml:"stop_freq" json:"stop_freq,omitempty"`   // Hz
	Span           float64  `yaml:"span" json:"span"`                       // Hz
	Sweeps         int      `yaml:"sweeps" json:"sweeps"`
	PollInterval   Duration `yaml:"poll_interval" json:"poll_interval,omitempty"`
	SettleFactor   float64  `yaml:"settle_factor" json:"settle_factor,omitempty"`

	DSAConfig dsa.Config `yaml:"dsa_cfg" json:"dsa_cfg"`
}

// DefaultParams returns the parameters written when no parameter file exists
func DefaultParams() *Params {
	cfg, err := dsa.NewConfig(
		dsa.Entry{Name: dsa.SettingTraceMode, Value: string(dsa.TraceModeMaxHold)},
		dsa.Entry{Name: dsa.SettingPreampEnabled, Value: true},
		dsa.Entry{Name: dsa.SettingUnits, Value: string(dsa.PowerUnitDBUV)},
		dsa.Entry{Name: dsa.SettingEMIFilterEnabled, Value: true},
		dsa.Entry{Name: dsa.SettingRBW, Value: 120000},
	)
	if err != nil {
		panic(fmt.Sprintf("invalid default instrument settings: %s", err))
	}

	return &Params{
		Title:         DefaultTitle,
		Antenna:       DefaultAntenna,
		LimitStandard: DefaultLimitStandard,
		LimitUnits:    DefaultLimitUnits,
		Span:          DefaultSpan,
		Sweeps:        DefaultSweeps,
		DSAConfig:     cfg,
	}
}

// Validate checks the parameters that can be checked without reading any file
func (p *Params) Validate() error {
	if p.Span <= 0 {
		return fmt.Errorf("span must be positive: %g", p.Span)
	}
	if p.Sweeps < 1 {
		return fmt.Errorf("sweeps must be at least 1: %d", p.Sweeps)
	}
	if p.SettleFactor < 0 {
		return fmt.Errorf("settle factor must not be negative: %g", p.SettleFactor)
	}
	if p.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative: %s", time.Duration(p.PollInterval))
	}
	if p.BaudRate < 0 {
		return fmt.Errorf("baud rate must not be negative: %d", p.BaudRate)
	}
	if (p.LimitStandard == "") != (p.LimitUnits == "") {
		return errors.New("limit standard and limit units must be given together")
	}
	if p.LogLevel != "" {
		if _, err := ParseLevel(p.LogLevel); err != nil {
			return err
		}
	}

	for i, c := range p.Components {
		if c.File == "" {
			return fmt.Errorf("component %d: file is required", i)
		}
		if _, err := calibration.ParseKind(string(c.Kind)); err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
	}

	if p.Antenna == "" && len(p.Components) == 0 && (p.StartFrequency == nil || p.StopFrequency == nil) {
		return errors.New("start and stop frequency are required when no components are given")
	}
	if p.StartFrequency != nil && *p.StartFrequency < 0 {
		return fmt.Errorf("start frequency must not be negative: %g", *p.StartFrequency)
	}
	if p.StartFrequency != nil && p.StopFrequency != nil && *p.StopFrequency <= *p.StartFrequency {
		return fmt.Errorf("stop frequency must be greater than start: %g <= %g", *p.StopFrequency, *p.StartFrequency)
	}

	return nil
}

// ComponentList returns the configured components in application order
func (p *Params) ComponentList() []ComponentConfig {
	var components []ComponentConfig
	if p.Antenna != "" {
		components = append(components, ComponentConfig{File: p.Antenna, Kind: calibration.KindAntennaFactor})
	}
	return append(components, p.Components...)
}

// AcquirerOptions returns the sweep options set in the parameters
func (p *Params) AcquirerOptions() []func(a *sweep.Acquirer) {
	var options []func(a *sweep.Acquirer)
	if p.PollInterval > 0 {
		options = append(options, sweep.WithPollInterval(time.Duration(p.PollInterval)))
	}
	if p.SettleFactor > 0 {
		options = append(options, sweep.WithSettleFactor(p.SettleFactor))
	}
	return options
}

// LoadParams reads the parameter file at path. When the file does not exist it is
// created with DefaultParams, which are returned. The second result reports creation.
func LoadParams(path string) (*Params, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		params := DefaultParams()
		if err = SaveParams(path, params); err != nil {
			return nil, false, err
		}
		return params, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading parameter file: %w", err)
	}

	params := Params{
		Span:   DefaultSpan,
		Sweeps: DefaultSweeps,
	}
	if err = yaml.Unmarshal(data, &params); err != nil {
		return nil, false, fmt.Errorf("parsing parameter file '%s': %w", path, err)
	}
	if err = params.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid parameter file '%s': %w", path, err)
	}

	return &params, false, nil
}

// SaveParams writes the parameters as indented JSON
func SaveParams(path string, params *Params) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	if err = os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	return nil
}

// ParseLevel parses a log level name such as "debug" or "warn"
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level '%s'", s)
	}
	return level, nil
}
