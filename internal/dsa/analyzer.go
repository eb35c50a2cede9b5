package dsa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/emctools/internal/scpi"
)

// WithLogger sets the logger for the analyzer
func WithLogger(logger *slog.Logger) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithConnOptions passes options to the underlying SCPI connection
func WithConnOptions(options ...func(c *scpi.Conn)) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.connOptions = append(a.connOptions, options...)
	}
}

// Analyzer is an open session with a DSA800 series spectrum analyzer. It owns the
// connection and must be closed.
type Analyzer struct {
	conn        *scpi.Conn
	connOptions []func(c *scpi.Conn)
	logger      *slog.Logger
}

func newAnalyzer(options ...func(a *Analyzer)) *Analyzer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	a := Analyzer{logger: logger}
	for _, option := range options {
		option(&a)
	}

	return &a
}

// Open connects to the analyzer at the given resource name
func Open(ctx context.Context, resource string, options ...func(a *Analyzer)) (*Analyzer, error) {
	a := newAnalyzer(options...)

	connOptions := append([]func(c *scpi.Conn){scpi.WithLogger(a.logger)}, a.connOptions...)
	conn, err := scpi.Open(ctx, resource, connOptions...)
	if err != nil {
		return nil, err
	}
	a.conn = conn

	return a, nil
}

// New returns an analyzer session over an established connection
func New(conn *scpi.Conn, options ...func(a *Analyzer)) *Analyzer {
	a := newAnalyzer(options...)
	a.conn = conn
	return a
}

// Close releases the connection
func (a *Analyzer) Close() error {
	return a.conn.Close()
}

// Identify returns the *IDN? string
func (a *Analyzer) Identify(ctx context.Context) (string, error) {
	return a.query(ctx, "*IDN?")
}

// Configure applies every present setting, in canonical order
func (a *Analyzer) Configure(ctx context.Context, cfg Config) error {
	for _, e := range cfg.Entries() {
		if err := a.apply(ctx, e); err != nil {
			return fmt.Errorf("applying %s: %w", e.Name, err)
		}
		a.logger.Debug("applied setting", slog.String("name", e.Name), slog.Any("value", e.Value))
	}
	return nil
}

func (a *Analyzer) apply(ctx context.Context, e Entry) error {
	switch e.Name {
	case SettingDataFormat:
		return a.SetDataFormat(ctx, DataFormat(e.Value.(string)))
	case SettingTraceMode:
		return a.SetTraceMode(ctx, TraceMode(e.Value.(string)))
	case SettingPreampEnabled:
		return a.SetPreamp(ctx, e.Value.(bool))
	case SettingUnits:
		return a.SetUnits(ctx, PowerUnit(e.Value.(string)))
	case SettingEMIFilterEnabled:
		return a.SetEMIFilter(ctx, e.Value.(bool))
	case SettingRBW:
		return a.SetRBW(ctx, e.Value.(int))
	case SettingVBW:
		return a.SetVBW(ctx, e.Value.(int))
	case SettingSweepPoints:
		return a.SetSweepPoints(ctx, e.Value.(int))
	case SettingDetector:
		return a.SetDetector(ctx, Detector(e.Value.(string)))
	case SettingTGEnabled:
		return a.SetTrackingGenerator(ctx, e.Value.(bool))
	case SettingTGAmplitude:
		return a.SetTGAmplitude(ctx, e.Value.(int))
	case SettingAttenuation:
		return a.SetAttenuation(ctx, e.Value.(int))
	case SettingRefLevel:
		return a.SetRefLevel(ctx, e.Value.(int))
	}
	return fmt.Errorf("%w '%s'", ErrUnknownSetting, e.Name)
}

// Frequency settings. Frequencies are programmed as integer Hz.

func (a *Analyzer) SetStartFrequency(ctx context.Context, hz float64) error {
	return a.write(ctx, ":SENSe:FREQ:STARt %d", hertz(hz))
}

func (a *Analyzer) StartFrequency(ctx context.Context) (float64, error) {
	return a.queryFloat(ctx, ":SENSe:FREQ:STARt?")
}

func (a *Analyzer) SetStopFrequency(ctx context.Context, hz float64) error {
	return a.write(ctx, ":SENSe:FREQ:STOP %d", hertz(hz))
}

func (a *Analyzer) StopFrequency(ctx context.Context) (float64, error) {
	return a.queryFloat(ctx, ":SENSe:FREQ:STOP?")
}

func (a *Analyzer) SetCenterFrequency(ctx context.Context, hz float64) error {
	return a.write(ctx, ":SENSe:FREQ:CENT %d", hertz(hz))
}

func (a *Analyzer) CenterFrequency(ctx context.Context) (float64, error) {
	return a.queryFloat(ctx, ":SENSe:FREQ:CENT?")
}

func (a *Analyzer) SetSpan(ctx context.Context, hz float64) error {
	return a.write(ctx, ":SENSe:FREQ:SPAN %d", hertz(hz))
}

func (a *Analyzer) Span(ctx context.Context) (float64, error) {
	return a.queryFloat(ctx, ":SENSe:FREQ:SPAN?")
}

func hertz(hz float64) int64 {
	return int64(math.Round(hz))
}

// Sweep control

func (a *Analyzer) SetContinuous(ctx context.Context, on bool) error {
	return a.write(ctx, ":INITiate:CONTinuous %s", onOff(on))
}

func (a *Analyzer) Continuous(ctx context.Context) (bool, error) {
	return a.queryBool(ctx, ":INITiate:CONTinuous?")
}

func (a *Analyzer) SetSweepCount(ctx context.Context, n int) error {
	return a.write(ctx, ":SENSe:SWEep:COUNt %d", n)
}

func (a *Analyzer) SweepCount(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:SWEep:COUNt?")
}

// CompletedSweeps returns the number of sweeps finished since the last initiate
func (a *Analyzer) CompletedSweeps(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:SWEep:COUNt:CURRent?")
}

// SweepTime returns the duration of a single sweep
func (a *Analyzer) SweepTime(ctx context.Context) (time.Duration, error) {
	seconds, err := a.queryFloat(ctx, ":SENSe:SWEep:TIME?")
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Initiate starts a sweep sequence
func (a *Analyzer) Initiate(ctx context.Context) error {
	return a.write(ctx, ":INITiate:IMMediate")
}

// ReadTrace returns the amplitudes of trace 1. The data format must be ASCii.
func (a *Analyzer) ReadTrace(ctx context.Context) ([]float64, error) {
	block, err := a.query(ctx, ":TRACe:DATA? TRACE1")
	if err != nil {
		return nil, err
	}
	values, err := scpi.ParseASCIIBlock(block)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return values, nil
}

// Trace and measurement settings

func (a *Analyzer) SetDataFormat(ctx context.Context, f DataFormat) error {
	return a.write(ctx, ":FORMat:TRACe:DATA %s", f)
}

func (a *Analyzer) DataFormat(ctx context.Context) (DataFormat, error) {
	return queryEnum(ctx, a, ":FORMat:TRACe:DATA?", ParseDataFormat)
}

func (a *Analyzer) SetTraceMode(ctx context.Context, mode TraceMode) error {
	return a.write(ctx, ":TRACe1:MODE %s", mode)
}

func (a *Analyzer) TraceMode(ctx context.Context) (TraceMode, error) {
	return queryEnum(ctx, a, ":TRACe1:MODE?", ParseTraceMode)
}

func (a *Analyzer) SetPreamp(ctx context.Context, on bool) error {
	return a.write(ctx, ":SENSe:POW:GAIN %s", onOff(on))
}

func (a *Analyzer) Preamp(ctx context.Context) (bool, error) {
	return a.queryBool(ctx, ":SENSe:POW:GAIN?")
}

func (a *Analyzer) SetUnits(ctx context.Context, unit PowerUnit) error {
	return a.write(ctx, ":UNIT:POWer %s", unit)
}

func (a *Analyzer) Units(ctx context.Context) (PowerUnit, error) {
	return queryEnum(ctx, a, ":UNIT:POWer?", ParsePowerUnit)
}

func (a *Analyzer) SetEMIFilter(ctx context.Context, on bool) error {
	return a.write(ctx, ":SENSe:BANDwidth:EMIFilter:STATe %s", onOff(on))
}

func (a *Analyzer) EMIFilter(ctx context.Context) (bool, error) {
	return a.queryBool(ctx, ":SENSe:BANDwidth:EMIFilter:STATe?")
}

func (a *Analyzer) SetRBW(ctx context.Context, hz int) error {
	return a.write(ctx, ":SENSe:BAND %d", hz)
}

func (a *Analyzer) RBW(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:BAND?")
}

func (a *Analyzer) SetVBW(ctx context.Context, hz int) error {
	return a.write(ctx, ":SENSe:BANDwidth:VIDeo %d", hz)
}

func (a *Analyzer) VBW(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:BANDwidth:VIDeo?")
}

func (a *Analyzer) SetSweepPoints(ctx context.Context, n int) error {
	return a.write(ctx, ":SENSe:SWEep:POINts %d", n)
}

func (a *Analyzer) SweepPoints(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:SWEep:POINts?")
}

func (a *Analyzer) SetDetector(ctx context.Context, d Detector) error {
	return a.write(ctx, ":SENSe:DETector:FUNCtion %s", d)
}

func (a *Analyzer) Detector(ctx context.Context) (Detector, error) {
	return queryEnum(ctx, a, ":SENSe:DETector:FUNCtion?", ParseDetector)
}

func (a *Analyzer) SetTrackingGenerator(ctx context.Context, on bool) error {
	return a.write(ctx, ":OUTput:STATe %s", onOff(on))
}

func (a *Analyzer) TrackingGenerator(ctx context.Context) (bool, error) {
	return a.queryBool(ctx, ":OUTput:STATe?")
}

func (a *Analyzer) SetTGAmplitude(ctx context.Context, dbm int) error {
	return a.write(ctx, ":SOURce:POWer:LEVel:IMMediate:AMPLitude %d", dbm)
}

func (a *Analyzer) TGAmplitude(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SOURce:POWer:LEVel:IMMediate:AMPLitude?")
}

func (a *Analyzer) SetAttenuation(ctx context.Context, db int) error {
	return a.write(ctx, ":SENSe:POWer:RF:ATTenuation %d", db)
}

func (a *Analyzer) Attenuation(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":SENSe:POWer:RF:ATTenuation?")
}

func (a *Analyzer) SetRefLevel(ctx context.Context, level int) error {
	return a.write(ctx, ":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel %d", level)
}

func (a *Analyzer) RefLevel(ctx context.Context) (int, error) {
	return a.queryInt(ctx, ":DISPlay:WINdow:TRACe:Y:SCALe:RLEVel?")
}

// InstallLicense installs a purchased option key
func (a *Analyzer) InstallLicense(ctx context.Context, key string) error {
	return a.write(ctx, ":SYSTem:LKEY %s", key)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func (a *Analyzer) write(ctx context.Context, format string, args ...any) error {
	command := fmt.Sprintf(format, args...)
	a.logger.Debug("write", slog.String("command", command))
	return a.conn.Write(ctx, command)
}

func (a *Analyzer) query(ctx context.Context, command string) (string, error) {
	resp, err := a.conn.Query(ctx, command)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (a *Analyzer) queryFloat(ctx context.Context, command string) (float64, error) {
	resp, err := a.query(ctx, command)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing response to '%s': %w", command, err)
	}
	return v, nil
}

// queryInt accepts integers written in any float notation, e.g. 1.2e+05
func (a *Analyzer) queryInt(ctx context.Context, command string) (int, error) {
	v, err := a.queryFloat(ctx, command)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

func (a *Analyzer) queryBool(ctx context.Context, command string) (bool, error) {
	resp, err := a.query(ctx, command)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(resp) {
	case "ON", "1":
		return true, nil
	case "OFF", "0":
		return false, nil
	}
	return false, fmt.Errorf("parsing response to '%s': unexpected '%s'", command, resp)
}

func queryEnum[T ~string](ctx context.Context, a *Analyzer, command string, parse func(string) (T, error)) (T, error) {
	resp, err := a.query(ctx, command)
	if err != nil {
		return "", err
	}
	v, err := parse(resp)
	if err != nil {
		return "", fmt.Errorf("parsing response to '%s': %w", command, err)
	}
	return v, nil
}
