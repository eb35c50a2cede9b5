package dsa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrUnknownSetting is returned when a setting name is not part of Config
var ErrUnknownSetting = errors.New("unknown setting")

// Setting names, in canonical order
const (
	SettingDataFormat       = "data_format"
	SettingTraceMode        = "trace_mode"
	SettingPreampEnabled    = "preamp_en"
	SettingUnits            = "units"
	SettingEMIFilterEnabled = "emi_filter_en"
	SettingRBW              = "rbw"
	SettingVBW              = "vbw"
	SettingSweepPoints      = "sweep_points"
	SettingDetector         = "detector_function"
	SettingTGEnabled        = "tg_en"
	SettingTGAmplitude      = "tg_amplitude"
	SettingAttenuation      = "attenuation"
	SettingRefLevel         = "ref_level"
)

var settingNames = []string{
	SettingDataFormat,
	SettingTraceMode,
	SettingPreampEnabled,
	SettingUnits,
	SettingEMIFilterEnabled,
	SettingRBW,
	SettingVBW,
	SettingSweepPoints,
	SettingDetector,
	SettingTGEnabled,
	SettingTGAmplitude,
	SettingAttenuation,
	SettingRefLevel,
}

// Config is a subset of analyzer settings. A nil field is left untouched on the instrument
// and is not serialized.
type Config struct {
	DataFormat       *DataFormat
	TraceMode        *TraceMode
	PreampEnabled    *bool
	Units            *PowerUnit
	EMIFilterEnabled *bool
	RBW              *int // Hz
	VBW              *int // Hz
	SweepPoints      *int
	Detector         *Detector
	TGEnabled        *bool
	TGAmplitude      *int // dBm
	Attenuation      *int // dB
	RefLevel         *int // in Units

	// order is the sequence settings were first assigned in by Set. Settings set
	// directly on the fields follow in canonical order.
	order []string
}

// Entry is one setting of a Config. Value is a string, bool or int.
type Entry struct {
	Name  string
	Value any
}

// DefaultConfig returns the power-on configuration used before user settings are applied
func DefaultConfig() Config {
	return Config{
		DataFormat:       ptr(DataFormatASCII),
		TraceMode:        ptr(TraceModeWrite),
		PreampEnabled:    ptr(false),
		Units:            ptr(PowerUnitDBM),
		EMIFilterEnabled: ptr(false),
		RBW:              ptr(100000),
		TGEnabled:        ptr(false),
		TGAmplitude:      ptr(-40),
	}
}

func ptr[T any](v T) *T {
	return &v
}

// SettingNames returns all setting names in canonical order
func SettingNames() []string {
	return append([]string(nil), settingNames...)
}

// Entries returns the settings that are present, in canonical order
func (c Config) Entries() []Entry {
	var entries []Entry
	add := func(name string, v any) {
		entries = append(entries, Entry{Name: name, Value: v})
	}

	if c.DataFormat != nil {
		add(SettingDataFormat, string(*c.DataFormat))
	}
	if c.TraceMode != nil {
		add(SettingTraceMode, string(*c.TraceMode))
	}
	if c.PreampEnabled != nil {
		add(SettingPreampEnabled, *c.PreampEnabled)
	}
	if c.Units != nil {
		add(SettingUnits, string(*c.Units))
	}
	if c.EMIFilterEnabled != nil {
		add(SettingEMIFilterEnabled, *c.EMIFilterEnabled)
	}
	if c.RBW != nil {
		add(SettingRBW, *c.RBW)
	}
	if c.VBW != nil {
		add(SettingVBW, *c.VBW)
	}
	if c.SweepPoints != nil {
		add(SettingSweepPoints, *c.SweepPoints)
	}
	if c.Detector != nil {
		add(SettingDetector, string(*c.Detector))
	}
	if c.TGEnabled != nil {
		add(SettingTGEnabled, *c.TGEnabled)
	}
	if c.TGAmplitude != nil {
		add(SettingTGAmplitude, *c.TGAmplitude)
	}
	if c.Attenuation != nil {
		add(SettingAttenuation, *c.Attenuation)
	}
	if c.RefLevel != nil {
		add(SettingRefLevel, *c.RefLevel)
	}

	return entries
}

// NewConfig builds a Config from entries, remembering their order
func NewConfig(entries ...Entry) (Config, error) {
	var c Config
	for _, e := range entries {
		if err := c.Set(e.Name, e.Value); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

// Ordered returns the present settings in the order they were assigned, followed by any
// settings assigned directly on the fields in canonical order.
func (c Config) Ordered() []Entry {
	entries := c.Entries()
	if len(c.order) == 0 {
		return entries
	}

	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	ordered := make([]Entry, 0, len(entries))
	for _, name := range c.order {
		if e, ok := byName[name]; ok {
			ordered = append(ordered, e)
			delete(byName, name)
		}
	}
	for _, e := range entries {
		if _, ok := byName[e.Name]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered
}

// Set assigns a setting by name. Strings must name a known mnemonic, integers may be
// given as any integral number. On error c is unchanged. A setting keeps the position
// it was first assigned at.
func (c *Config) Set(name string, value any) error {
	next := *c
	if len(next.order) == 0 {
		for _, e := range next.Entries() {
			next.order = append(next.order, e.Name)
		}
	}

	var err error
	switch name {
	case SettingDataFormat:
		next.DataFormat, err = setEnum(value, ParseDataFormat)
	case SettingTraceMode:
		next.TraceMode, err = setEnum(value, ParseTraceMode)
	case SettingPreampEnabled:
		next.PreampEnabled, err = setBool(value)
	case SettingUnits:
		next.Units, err = setEnum(value, ParsePowerUnit)
	case SettingEMIFilterEnabled:
		next.EMIFilterEnabled, err = setBool(value)
	case SettingRBW:
		next.RBW, err = setInt(value)
	case SettingVBW:
		next.VBW, err = setInt(value)
	case SettingSweepPoints:
		next.SweepPoints, err = setInt(value)
	case SettingDetector:
		next.Detector, err = setEnum(value, ParseDetector)
	case SettingTGEnabled:
		next.TGEnabled, err = setBool(value)
	case SettingTGAmplitude:
		next.TGAmplitude, err = setInt(value)
	case SettingAttenuation:
		next.Attenuation, err = setInt(value)
	case SettingRefLevel:
		next.RefLevel, err = setInt(value)
	default:
		return fmt.Errorf("%w '%s'", ErrUnknownSetting, name)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}

	if !slices.Contains(next.order, name) {
		next.order = append(slices.Clip(next.order), name)
	}
	*c = next
	return nil
}

func setEnum[T ~string](value any, parse func(string) (T, error)) (*T, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func setBool(value any) (*bool, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
	return &b, nil
}

func setInt(value any) (*int, error) {
	var i int
	switch v := value.(type) {
	case int:
		i = v
	case int64:
		i = int(v)
	case uint64:
		i = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("expected integer, got %v", v)
		}
		i = int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, got %s", v)
			}
			n = int64(f)
		}
		i = int(n)
	default:
		return nil, fmt.Errorf("expected integer, got %T", value)
	}
	return &i, nil
}

// Overlay returns c with every setting present in other replacing its own. Settings new
// to c are appended in other's order.
func (c Config) Overlay(other Config) (Config, error) {
	for _, e := range other.Ordered() {
		if err := c.Set(e.Name, e.Value); err != nil {
			return Config{}, fmt.Errorf("overlaying config: %w", err)
		}
	}
	return c, nil
}

// Encode returns the names and values of the present settings, each encoded as an
// independent JSON document so that value types survive a text round trip.
func (c Config) Encode() (names, values []string, err error) {
	for _, e := range c.Ordered() {
		name, err := json.Marshal(e.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding setting name %s: %w", e.Name, err)
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding setting %s: %w", e.Name, err)
		}
		names = append(names, string(name))
		values = append(values, string(value))
	}
	return names, values, nil
}

// Decode builds a Config from the output of Encode
func Decode(names, values []string) (Config, error) {
	var c Config
	if len(names) != len(values) {
		return c, fmt.Errorf("decoding config: %d names, %d values", len(names), len(values))
	}

	for i := range names {
		var name string
		if err := json.Unmarshal([]byte(names[i]), &name); err != nil {
			return Config{}, fmt.Errorf("decoding setting name %d: %w", i, err)
		}

		dec := json.NewDecoder(bytes.NewReader([]byte(values[i])))
		dec.UseNumber()
		var value any
		if err := dec.Decode(&value); err != nil {
			return Config{}, fmt.Errorf("decoding setting %s: %w", name, err)
		}

		if err := c.Set(name, value); err != nil {
			return Config{}, fmt.Errorf("decoding config: %w", err)
		}
	}

	return c, nil
}

// MarshalJSON writes the present settings as an object in assignment order
func (c Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.Ordered() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(e.Name)
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping of setting names to values. JSON documents are valid
// YAML, so this also serves parameter files written as JSON.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: instrument settings must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i].Line, err)
		}
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i+1].Line, err)
		}
		if err := c.Set(name, value); err != nil {
			return fmt.Errorf("line %d: %w", node.Content[i].Line, err)
		}
	}

	return nil
}
