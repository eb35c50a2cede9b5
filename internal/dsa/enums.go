package dsa

import (
	"fmt"
	"strings"
)

// DataFormat is the trace transfer format
type DataFormat string

const (
	DataFormatASCII DataFormat = "ASCii"
	DataFormatReal  DataFormat = "REAL"
)

// TraceMode is how the analyzer accumulates repeated sweeps into trace 1
type TraceMode string

const (
	TraceModeWrite        TraceMode = "WRITe"
	TraceModeMaxHold      TraceMode = "MAXHold"
	TraceModeMinHold      TraceMode = "MINHold"
	TraceModeView         TraceMode = "VIEW"
	TraceModeBlank        TraceMode = "BLANk"
	TraceModeVideoAverage TraceMode = "VIDeoavg"
	TraceModePowerAverage TraceMode = "POWeravg"
)

// PowerUnit is the amplitude unit of the Y axis
type PowerUnit string

const (
	PowerUnitDBM  PowerUnit = "DBM"
	PowerUnitDBMV PowerUnit = "DBMV"
	PowerUnitDBUV PowerUnit = "DBUV"
	PowerUnitV    PowerUnit = "V"
	PowerUnitW    PowerUnit = "W"
)

// Detector is the detector function of trace 1
type Detector string

const (
	DetectorNegative    Detector = "NEGative"
	DetectorNormal      Detector = "NORMal"
	DetectorPositive    Detector = "POSitive"
	DetectorRMS         Detector = "RMS"
	DetectorSample      Detector = "SAMPle"
	DetectorVoltAverage Detector = "VAVerage"
	DetectorQuasiPeak   Detector = "QPEak"
)

var (
	dataFormats = []DataFormat{DataFormatASCII, DataFormatReal}
	traceModes  = []TraceMode{TraceModeWrite, TraceModeMaxHold, TraceModeMinHold, TraceModeView, TraceModeBlank, TraceModeVideoAverage, TraceModePowerAverage}
	powerUnits  = []PowerUnit{PowerUnitDBM, PowerUnitDBMV, PowerUnitDBUV, PowerUnitV, PowerUnitW}
	detectors   = []Detector{DetectorNegative, DetectorNormal, DetectorPositive, DetectorRMS, DetectorSample, DetectorVoltAverage, DetectorQuasiPeak}
)

// matchMnemonic returns the canonical mnemonic matching s. SCPI mnemonics match either the
// full form or the short form made of the upper case letters, both case-insensitively.
func matchMnemonic[T ~string](s string, known []T) (T, bool) {
	s = strings.TrimSpace(s)
	for _, k := range known {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, shortForm(string(k))) {
			return k, true
		}
	}
	return "", false
}

func shortForm(mnemonic string) string {
	var b strings.Builder
	for _, r := range mnemonic {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ParseDataFormat(s string) (DataFormat, error) {
	if v, ok := matchMnemonic(s, dataFormats); ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown data format '%s'", s)
}

func ParseTraceMode(s string) (TraceMode, error) {
	if v, ok := matchMnemonic(s, traceModes); ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown trace mode '%s'", s)
}

func ParsePowerUnit(s string) (PowerUnit, error) {
	if v, ok := matchMnemonic(s, powerUnits); ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown power unit '%s'", s)
}

func ParseDetector(s string) (Detector, error) {
	if v, ok := matchMnemonic(s, detectors); ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown detector '%s'", s)
}

// Label returns the unit as it is printed on axes, e.g. dBuV
func (u PowerUnit) Label() string {
	switch u {
	case PowerUnitDBM:
		return "dBm"
	case PowerUnitDBMV:
		return "dBmV"
	case PowerUnitDBUV:
		return "dBuV"
	}
	return string(u)
}
