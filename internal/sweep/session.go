package sweep

import (
	"context"
	"time"

	"github.com/roman-kulish/emctools/internal/dsa"
)

// Session is the instrument contract the acquirer drives. *dsa.Analyzer implements it.
type Session interface {
	Continuous(ctx context.Context) (bool, error)
	SetContinuous(ctx context.Context, on bool) error
	SweepCount(ctx context.Context) (int, error)
	SetSweepCount(ctx context.Context, n int) error
	TraceMode(ctx context.Context) (dsa.TraceMode, error)
	SetTraceMode(ctx context.Context, mode dsa.TraceMode) error

	SetStartFrequency(ctx context.Context, hz float64) error
	SetStopFrequency(ctx context.Context, hz float64) error
	StartFrequency(ctx context.Context) (float64, error)
	StopFrequency(ctx context.Context) (float64, error)

	// SweepTime is the duration of one sweep with the current settings
	SweepTime(ctx context.Context) (time.Duration, error)
	Initiate(ctx context.Context) error
	CompletedSweeps(ctx context.Context) (int, error)
	ReadTrace(ctx context.Context) ([]float64, error)
}

var _ Session = (*dsa.Analyzer)(nil)
