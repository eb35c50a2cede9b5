package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/spectrum"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultSettleFactor scales the expected sweep duration before polling starts
	DefaultSettleFactor = 0.9

	// DefaultPollInterval is the delay between sweep completion polls
	DefaultPollInterval = time.Second
)

var (
	// ErrInvalidSpan is returned when the segment span is not within (0, stop-start]
	ErrInvalidSpan = errors.New("invalid span")

	// ErrInvalidSweepCount is returned when fewer than one sweep per segment is requested
	ErrInvalidSweepCount = errors.New("invalid sweep count")

	// ErrShortTrace is returned when a segment trace has fewer than two points
	ErrShortTrace = errors.New("segment trace too short")
)

// Segment describes one instrument sweep of an acquisition
type Segment struct {
	RequestedStart float64 `json:"requestedStart"`
	RequestedStop  float64 `json:"requestedStop"`
	Start          float64 `json:"start"` // as reported by the instrument
	Stop           float64 `json:"stop"`  // as reported by the instrument
	Points         int     `json:"points"`
}

// Result is a stitched wide-span trace
type Result struct {
	Trace    spectrum.Trace
	Segments []Segment
}

// WithLogger sets the logger for the acquirer
func WithLogger(logger *slog.Logger) func(a *Acquirer) {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// WithSettleFactor sets the fraction of the expected sweep duration to wait before polling
func WithSettleFactor(factor float64) func(a *Acquirer) {
	return func(a *Acquirer) {
		a.settleFactor = factor
	}
}

// WithPollInterval sets the delay between completion polls
func WithPollInterval(interval time.Duration) func(a *Acquirer) {
	return func(a *Acquirer) {
		a.pollInterval = interval
	}
}

// WithSleeper replaces the function used for timed waits
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) func(a *Acquirer) {
	return func(a *Acquirer) {
		a.sleep = sleep
	}
}

// Acquirer stitches consecutive narrow-span sweeps into one wide-span trace
type Acquirer struct {
	session      Session
	settleFactor float64
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
}

// NewAcquirer creates a new Acquirer with a discard logger
func NewAcquirer(session Session, options ...func(a *Acquirer)) *Acquirer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	a := Acquirer{
		session:      session,
		settleFactor: DefaultSettleFactor,
		pollInterval: DefaultPollInterval,
		sleep:        sleep,
		logger:       logger,
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Acquire sweeps [start, stop) in segments of span Hz, accumulating sweeps sweeps per
// segment in the instrument's current trace mode. The instrument's continuous mode and
// sweep count are restored before returning, also on error. There is no timeout on
// waiting for sweeps to complete other than ctx.
func (a *Acquirer) Acquire(ctx context.Context, start, stop, span float64, sweeps int) (result *Result, err error) {
	if span <= 0 || span > stop-start {
		return nil, fmt.Errorf("%w: %g Hz for range [%g, %g]", ErrInvalidSpan, span, start, stop)
	}
	if sweeps < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSweepCount, sweeps)
	}

	continuous, err := a.session.Continuous(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading continuous mode: %w", err)
	}
	sweepCount, err := a.session.SweepCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading sweep count: %w", err)
	}

	defer func() {
		restoreCtx := context.WithoutCancel(ctx)
		restoreErr := errors.Join(
			a.session.SetSweepCount(restoreCtx, sweepCount),
			a.session.SetContinuous(restoreCtx, continuous),
		)
		if restoreErr != nil {
			result = nil
			err = errors.Join(err, fmt.Errorf("restoring sweep settings: %w", restoreErr))
		}
	}()

	if err = a.session.SetContinuous(ctx, false); err != nil {
		return nil, fmt.Errorf("selecting single sweep mode: %w", err)
	}
	if err = a.session.SetSweepCount(ctx, sweeps); err != nil {
		return nil, fmt.Errorf("setting sweep count: %w", err)
	}
	mode, err := a.session.TraceMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading trace mode: %w", err)
	}

	a.logger.Info("acquisition started",
		slog.Float64("start", start),
		slog.Float64("stop", stop),
		slog.Float64("span", span),
		slog.Int("sweeps", sweeps),
		slog.String("traceMode", string(mode)),
	)

	var (
		amplitudes []float64
		segments   []Segment
		last       []float64
	)
	for i := 0; start+float64(i)*span < stop; i++ {
		cursor := start + float64(i)*span
		segment, trace, err := a.acquireSegment(ctx, cursor, cursor+span, sweeps, mode)
		if err != nil {
			return nil, fmt.Errorf("segment %d [%g, %g]: %w", len(segments), cursor, cursor+span, err)
		}

		if len(segments) > 0 && segment.Points != segments[0].Points {
			a.logger.Warn("segment point count differs, frequency axis is approximate",
				slog.Int("segment", len(segments)),
				slog.Int("points", segment.Points),
				slog.Int("firstSegmentPoints", segments[0].Points),
			)
		}

		// the last point coincides with the next segment's first
		amplitudes = append(amplitudes, trace[:len(trace)-1]...)
		segments = append(segments, segment)
		last = trace
	}
	amplitudes = append(amplitudes, last[len(last)-1])

	final := segments[len(segments)-1]
	frequencies := floats.Span(make([]float64, len(amplitudes)), start, final.Stop)
	frequencies[len(frequencies)-1] = final.Stop

	// Points at or beyond stop come from a last segment that overshot it. When the range
	// divides evenly the final point is the requested stop and is kept.
	n := len(frequencies)
	if final.RequestedStop > stop {
		for n > 0 && frequencies[n-1] >= stop {
			n--
		}
	}

	trace, err := spectrum.NewTrace(frequencies[:n], amplitudes[:n])
	if err != nil {
		return nil, fmt.Errorf("building trace: %w", err)
	}

	a.logger.Info("acquisition completed",
		slog.Int("segments", len(segments)),
		slog.Int("points", trace.Len()),
		slog.Int("dropped", len(frequencies)-n),
	)

	return &Result{Trace: trace, Segments: segments}, nil
}

func (a *Acquirer) acquireSegment(ctx context.Context, start, stop float64, sweeps int, mode dsa.TraceMode) (Segment, []float64, error) {
	segment := Segment{RequestedStart: start, RequestedStop: stop}

	if err := a.session.SetStartFrequency(ctx, start); err != nil {
		return segment, nil, fmt.Errorf("setting start frequency: %w", err)
	}
	if err := a.session.SetStopFrequency(ctx, stop); err != nil {
		return segment, nil, fmt.Errorf("setting stop frequency: %w", err)
	}
	// re-issuing the trace mode clears held or averaged data
	if err := a.session.SetTraceMode(ctx, mode); err != nil {
		return segment, nil, fmt.Errorf("resetting trace mode: %w", err)
	}
	if err := a.session.Initiate(ctx); err != nil {
		return segment, nil, fmt.Errorf("initiating sweep: %w", err)
	}

	sweepTime, err := a.session.SweepTime(ctx)
	if err != nil {
		return segment, nil, fmt.Errorf("reading sweep time: %w", err)
	}
	settle := time.Duration(float64(sweepTime) * float64(sweeps) * a.settleFactor)
	if err = a.sleep(ctx, settle); err != nil {
		return segment, nil, err
	}

	for {
		completed, err := a.session.CompletedSweeps(ctx)
		if err != nil {
			return segment, nil, fmt.Errorf("polling completed sweeps: %w", err)
		}
		if completed >= sweeps {
			break
		}
		a.logger.Debug("waiting for sweeps", slog.Int("completed", completed), slog.Int("requested", sweeps))
		if err = a.sleep(ctx, a.pollInterval); err != nil {
			return segment, nil, err
		}
	}

	trace, err := a.session.ReadTrace(ctx)
	if err != nil {
		return segment, nil, fmt.Errorf("reading trace: %w", err)
	}
	if len(trace) < 2 {
		return segment, nil, fmt.Errorf("%w: %d points", ErrShortTrace, len(trace))
	}

	if segment.Start, err = a.session.StartFrequency(ctx); err != nil {
		return segment, nil, fmt.Errorf("reading start frequency: %w", err)
	}
	if segment.Stop, err = a.session.StopFrequency(ctx); err != nil {
		return segment, nil, fmt.Errorf("reading stop frequency: %w", err)
	}
	segment.Points = len(trace)

	a.logger.Debug("segment acquired",
		slog.Float64("start", segment.Start),
		slog.Float64("stop", segment.Stop),
		slog.Int("points", segment.Points),
		slog.Duration("settle", settle),
	)

	return segment, trace, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
