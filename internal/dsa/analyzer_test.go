package dsa

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/emctools/internal/scpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted is an in-memory instrument. Every written line is recorded; lines with a scripted
// answer queue it for the next read.
type scripted struct {
	commands []string
	answers  map[string]string
	out      bytes.Buffer
}

func (s *scripted) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		s.commands = append(s.commands, line)
		if answer, ok := s.answers[line]; ok {
			s.out.WriteString(answer + "\n")
		}
	}
	return len(p), nil
}

func (s *scripted) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

func (s *scripted) Close() error {
	return nil
}

func newScripted(answers map[string]string) (*Analyzer, *scripted) {
	s := &scripted{answers: answers}
	return New(scpi.New(s)), s
}

func TestAnalyzer_Configure(t *testing.T) {
	a, s := newScripted(nil)

	cfg, err := DefaultConfig().Overlay(Config{
		TraceMode:        ptr(TraceModeMaxHold),
		PreampEnabled:    ptr(true),
		Units:            ptr(PowerUnitDBUV),
		EMIFilterEnabled: ptr(true),
		RBW:              ptr(120000),
		Detector:         ptr(DetectorQuasiPeak),
		SweepPoints:      ptr(601),
	})
	require.NoError(t, err)

	require.NoError(t, a.Configure(context.Background(), cfg))

	assert.Equal(t, []string{
		":FORMat:TRACe:DATA ASCii",
		":TRACe1:MODE MAXHold",
		":SENSe:POW:GAIN ON",
		":UNIT:POWer DBUV",
		":SENSe:BANDwidth:EMIFilter:STATe ON",
		":SENSe:BAND 120000",
		":SENSe:SWEep:POINts 601",
		":SENSe:DETector:FUNCtion QPEak",
		":OUTput:STATe OFF",
		":SOURce:POWer:LEVel:IMMediate:AMPLitude -40",
	}, s.commands)
}

func TestAnalyzer_FrequencyCommands(t *testing.T) {
	a, s := newScripted(map[string]string{
		":SENSe:FREQ:STARt?": "3.000000e+07",
		":SENSe:FREQ:STOP?":  "130000000",
	})
	ctx := context.Background()

	require.NoError(t, a.SetStartFrequency(ctx, 30e6))
	require.NoError(t, a.SetStopFrequency(ctx, 130e6+0.4))
	require.NoError(t, a.SetSpan(ctx, 100e6))

	start, err := a.StartFrequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30e6, start)

	stop, err := a.StopFrequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 130e6, stop)

	assert.Equal(t, []string{
		":SENSe:FREQ:STARt 30000000",
		":SENSe:FREQ:STOP 130000000",
		":SENSe:FREQ:SPAN 100000000",
		":SENSe:FREQ:STARt?",
		":SENSe:FREQ:STOP?",
	}, s.commands)
}

func TestAnalyzer_SweepControl(t *testing.T) {
	a, s := newScripted(map[string]string{
		":INITiate:CONTinuous?":       "1",
		":SENSe:SWEep:COUNt?":         "1",
		":SENSe:SWEep:COUNt:CURRent?": "7",
		":SENSe:SWEep:TIME?":          "1.250000e-01",
		":TRACe1:MODE?":               "MAXH",
		":TRACe:DATA? TRACE1":         "#9000000012 -60.5, -61",
	})
	ctx := context.Background()

	continuous, err := a.Continuous(ctx)
	require.NoError(t, err)
	assert.True(t, continuous)

	count, err := a.SweepCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	completed, err := a.CompletedSweeps(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, completed)

	sweepTime, err := a.SweepTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 125*time.Millisecond, sweepTime)

	mode, err := a.TraceMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, TraceModeMaxHold, mode)

	trace, err := a.ReadTrace(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{-60.5, -61}, trace)

	require.NoError(t, a.SetContinuous(ctx, false))
	require.NoError(t, a.SetSweepCount(ctx, 10))
	require.NoError(t, a.Initiate(ctx))

	assert.Equal(t, []string{
		":INITiate:CONTinuous OFF",
		":SENSe:SWEep:COUNt 10",
		":INITiate:IMMediate",
	}, s.commands[len(s.commands)-3:])
}

func TestAnalyzer_MalformedResponses(t *testing.T) {
	a, _ := newScripted(map[string]string{
		":SENSe:POW:GAIN?":    "maybe",
		":SENSe:FREQ:STOP?":   "n/a",
		":TRACe:DATA? TRACE1": "-60.5, -61",
		":UNIT:POWer?":        "FURLONG",
	})
	ctx := context.Background()

	_, err := a.Preamp(ctx)
	assert.Error(t, err)

	_, err = a.StopFrequency(ctx)
	assert.Error(t, err)

	_, err = a.ReadTrace(ctx)
	assert.ErrorIs(t, err, scpi.ErrInvalidBlock)

	_, err = a.Units(ctx)
	assert.Error(t, err)
}

func TestAnalyzer_Identify(t *testing.T) {
	a, _ := newScripted(map[string]string{
		"*IDN?": "Rigol Technologies,DSA815,DSA8A000000001,00.01.19.00.02\r",
	})

	idn, err := a.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rigol Technologies,DSA815,DSA8A000000001,00.01.19.00.02", idn)
	require.NoError(t, a.Close())
}
