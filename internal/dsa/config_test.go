package dsa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_EncodeDecode(t *testing.T) {
	cfg, err := DefaultConfig().Overlay(Config{
		TraceMode:   ptr(TraceModeMaxHold),
		RBW:         ptr(120000),
		RefLevel:    ptr(-20),
		SweepPoints: ptr(601),
	})
	require.NoError(t, err)

	names, values, err := cfg.Encode()
	require.NoError(t, err)

	// overridden settings keep their place, new ones follow the defaults
	assert.Equal(t, []string{
		`"data_format"`, `"trace_mode"`, `"preamp_en"`, `"units"`, `"emi_filter_en"`,
		`"rbw"`, `"tg_en"`, `"tg_amplitude"`, `"sweep_points"`, `"ref_level"`,
	}, names)
	assert.Equal(t, []string{
		`"ASCii"`, `"MAXHold"`, `false`, `"DBM"`, `false`,
		`120000`, `false`, `-40`, `601`, `-20`,
	}, values)

	decoded, err := Decode(names, values)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
	assert.Equal(t, cfg.Entries(), decoded.Entries())
}

func TestDecode_Rejects(t *testing.T) {
	testCases := []struct {
		name   string
		names  []string
		values []string
	}{
		{"unknown name", []string{`"span"`}, []string{`100`}},
		{"bool given as int", []string{`"preamp_en"`}, []string{`1`}},
		{"int given as string", []string{`"rbw"`}, []string{`"120000"`}},
		{"fractional int", []string{`"rbw"`}, []string{`1.5`}},
		{"unknown mnemonic", []string{`"trace_mode"`}, []string{`"PEAK"`}},
		{"name not json", []string{`rbw`}, []string{`1`}},
		{"value not json", []string{`"rbw"`}, []string{`one`}},
		{"length mismatch", []string{`"rbw"`}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.names, tc.values)
			assert.Error(t, err)
		})
	}

	_, err := Decode([]string{`"span"`}, []string{`1`})
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestConfig_Set(t *testing.T) {
	var cfg Config

	require.NoError(t, cfg.Set(SettingTraceMode, "maxh"))
	assert.Equal(t, TraceModeMaxHold, *cfg.TraceMode)

	require.NoError(t, cfg.Set(SettingRBW, 1.2e5))
	assert.Equal(t, 120000, *cfg.RBW)

	require.NoError(t, cfg.Set(SettingUnits, "dbuv"))
	assert.Equal(t, PowerUnitDBUV, *cfg.Units)

	assert.ErrorIs(t, cfg.Set("gain", 1), ErrUnknownSetting)
	assert.Error(t, cfg.Set(SettingTGEnabled, "yes"))
}

func TestConfig_UnmarshalYAML(t *testing.T) {
	doc := `{"trace_mode": "MAXHold", "preamp_en": true, "units": "DBUV", "emi_filter_en": true, "rbw": 120000}`

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(doc), &cfg))

	assert.Equal(t, []Entry{
		{SettingTraceMode, "MAXHold"},
		{SettingPreampEnabled, true},
		{SettingUnits, "DBUV"},
		{SettingEMIFilterEnabled, true},
		{SettingRBW, 120000},
	}, cfg.Entries())

	err := yaml.Unmarshal([]byte("detector_function: 3\n"), &cfg)
	assert.Error(t, err)

	err = yaml.Unmarshal([]byte("- rbw\n"), &cfg)
	assert.Error(t, err)
}

func TestConfig_KeepsDecodedOrder(t *testing.T) {
	names := []string{`"rbw"`, `"units"`, `"trace_mode"`, `"preamp_en"`}
	values := []string{`120000`, `"DBUV"`, `"MAXHold"`, `true`}

	cfg, err := Decode(names, values)
	require.NoError(t, err)

	gotNames, gotValues, err := cfg.Encode()
	require.NoError(t, err)
	assert.Equal(t, names, gotNames)
	assert.Equal(t, values, gotValues)

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"rbw":120000,"units":"DBUV","trace_mode":"MAXHold","preamp_en":true}`, string(b))

	// instrument order is unaffected
	assert.Equal(t, SettingTraceMode, cfg.Entries()[0].Name)

	// reassigning keeps the first position
	require.NoError(t, cfg.Set(SettingRBW, 100000))
	gotNames, _, err = cfg.Encode()
	require.NoError(t, err)
	assert.Equal(t, names, gotNames)
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Entry{SettingUnits, "DBUV"}, Entry{SettingTraceMode, "MAXHold"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{SettingUnits, "DBUV"}, {SettingTraceMode, "MAXHold"}}, cfg.Ordered())

	_, err = NewConfig(Entry{"bogus", 1})
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestConfig_SetFailureLeavesValue(t *testing.T) {
	cfg := DefaultConfig()

	assert.Error(t, cfg.Set(SettingRBW, "wide"))
	require.NotNil(t, cfg.RBW)
	assert.Equal(t, 100000, *cfg.RBW)
}

func TestConfig_OverlayRejectsInvalid(t *testing.T) {
	bad := PowerUnit("dBfoo")

	_, err := DefaultConfig().Overlay(Config{Units: &bad})
	assert.Error(t, err)
}

func TestConfig_MarshalJSON(t *testing.T) {
	cfg := Config{RBW: ptr(120000), TraceMode: ptr(TraceModeMaxHold), PreampEnabled: ptr(true)}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, `{"trace_mode":"MAXHold","preamp_en":true,"rbw":120000}`, string(b))

	b, err = json.Marshal(Config{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestParseEnums(t *testing.T) {
	for s, want := range map[string]TraceMode{
		"WRITe": TraceModeWrite, "WRIT": TraceModeWrite, "write": TraceModeWrite,
		"VID": TraceModeVideoAverage, "POWERAVG": TraceModePowerAverage,
	} {
		got, err := ParseTraceMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	_, err := ParseTraceMode("WRI")
	assert.Error(t, err)

	d, err := ParseDetector("QPE")
	require.NoError(t, err)
	assert.Equal(t, DetectorQuasiPeak, d)

	f, err := ParseDataFormat("ASC")
	require.NoError(t, err)
	assert.Equal(t, DataFormatASCII, f)
}

func TestPowerUnit_Label(t *testing.T) {
	assert.Equal(t, "dBm", PowerUnitDBM.Label())
	assert.Equal(t, "dBmV", PowerUnitDBMV.Label())
	assert.Equal(t, "dBuV", PowerUnitDBUV.Label())
	assert.Equal(t, "W", PowerUnitW.Label())
}
