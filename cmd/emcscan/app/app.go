package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/emctools/internal/calibration"
	"github.com/roman-kulish/emctools/internal/dsa"
	"github.com/roman-kulish/emctools/internal/limit"
	"github.com/roman-kulish/emctools/internal/measurement"
	"github.com/roman-kulish/emctools/internal/plot"
	"github.com/roman-kulish/emctools/internal/scpi"
	"github.com/roman-kulish/emctools/internal/sweep"
)

const filenameLayout = "2006-01-02-150405"

var errNoRange = errors.New("components do not share a frequency range")

// Run performs one measurement: it loads the tables, connects to the analyzer, acquires
// the trace and writes the record as CSV and PNG into the output directory.
func Run(ctx context.Context, params *Params, logger *slog.Logger) error {
	started := time.Now()

	// the limit is checked before the instrument is touched
	var lim *limit.Table
	if params.LimitStandard != "" {
		var err error
		if lim, err = limit.New(params.LimitStandard, params.LimitUnits); err != nil {
			return fmt.Errorf("creating limit: %w", err)
		}
	}

	components, err := loadComponents(params.ComponentList(), logger)
	if err != nil {
		return err
	}

	start, stop, err := frequencyRange(params, components)
	if err != nil {
		return err
	}

	cfg, err := dsa.DefaultConfig().Overlay(params.DSAConfig)
	if err != nil {
		return err
	}

	if params.OutputDir != "" {
		if err = os.MkdirAll(params.OutputDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	analyzer, err := connect(ctx, params, logger)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	id, err := analyzer.Identify(ctx)
	if err != nil {
		return fmt.Errorf("identifying instrument: %w", err)
	}
	logger.Info("connected", slog.String("instrument", id))

	if err = analyzer.Configure(ctx, cfg); err != nil {
		return fmt.Errorf("configuring instrument: %w", err)
	}

	logger.Info("acquiring trace",
		slog.Group("sweep",
			slog.String("start", humanize.SIWithDigits(start, 3, "Hz")),
			slog.String("stop", humanize.SIWithDigits(stop, 3, "Hz")),
			slog.String("span", humanize.SIWithDigits(params.Span, 3, "Hz")),
			slog.Int("sweeps", params.Sweeps),
		))

	options := append([]func(a *sweep.Acquirer){sweep.WithLogger(logger)}, params.AcquirerOptions()...)
	result, err := sweep.NewAcquirer(analyzer, options...).Acquire(ctx, start, stop, params.Span, params.Sweeps)
	if err != nil {
		return fmt.Errorf("acquiring trace: %w", err)
	}

	rec := measurement.New(params.Title, cfg, result.Trace)
	for _, c := range components {
		if err = rec.AddComponent(c); err != nil {
			return fmt.Errorf("adding component: %w", err)
		}
	}
	if lim != nil {
		if err = rec.SetLimit(lim); err != nil {
			return fmt.Errorf("setting limit: %w", err)
		}
	}

	base := filepath.Join(params.OutputDir, "trace-"+started.Format(filenameLayout))
	if err = save(rec, base); err != nil {
		return err
	}

	logger.Info("completed",
		slog.String("record", base+".csv"),
		slog.String("points", humanize.Comma(int64(result.Trace.Len()))),
		slog.Int("segments", len(result.Segments)),
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)

	return nil
}

func loadComponents(configs []ComponentConfig, logger *slog.Logger) ([]*calibration.Table, error) {
	tables := make([]*calibration.Table, 0, len(configs))
	for _, c := range configs {
		table, err := calibration.LoadFile(c.File, c.Name, c.Kind)
		if err != nil {
			return nil, fmt.Errorf("loading component '%s': %w", c.File, err)
		}

		logger.Debug("loaded component",
			slog.String("name", table.Name()),
			slog.String("kind", table.Kind().String()),
			slog.Int("points", len(table.Points())))

		tables = append(tables, table)
	}
	return tables, nil
}

// frequencyRange returns the sweep range: the explicit start and stop when set, otherwise
// the range covered by every component.
func frequencyRange(params *Params, components []*calibration.Table) (start, stop float64, err error) {
	start, stop = 0, math.Inf(1)
	for _, c := range components {
		start = math.Max(start, c.StartFrequency())
		stop = math.Min(stop, c.StopFrequency())
	}

	if params.StartFrequency != nil {
		start = *params.StartFrequency
	}
	if params.StopFrequency != nil {
		stop = *params.StopFrequency
	}

	if math.IsInf(stop, 1) || stop <= start {
		return 0, 0, fmt.Errorf("%w: [%g, %g]", errNoRange, start, stop)
	}
	return start, stop, nil
}

func connect(ctx context.Context, params *Params, logger *slog.Logger) (*dsa.Analyzer, error) {
	connOptions := []func(c *scpi.Conn){scpi.WithLogger(logger)}
	if params.BaudRate > 0 {
		connOptions = append(connOptions, scpi.WithBaudRate(params.BaudRate))
	}

	resource := params.Resource
	if resource == "" {
		discovered := scpi.ListResources(ctx, logger)

		var ok bool
		if resource, ok = pickResource(discovered); !ok {
			return nil, scpi.NewConnectionError("", discovered, errors.New("no instrument found"))
		}
		logger.Info("using discovered instrument", slog.String("resource", resource))
	}

	analyzer, err := dsa.Open(ctx, resource,
		dsa.WithLogger(logger),
		dsa.WithConnOptions(connOptions...))
	if err != nil {
		return nil, fmt.Errorf("connecting to instrument: %w", err)
	}
	return analyzer, nil
}

// pickResource chooses the instrument to use from a discovery listing: a Rigol USB device
// first, then a LAN instrument, then any other USB instrument. Serial ports are never
// picked since nothing identifies what is attached to them.
func pickResource(resources []string) (string, bool) {
	var lan, usb string
	for _, name := range resources {
		r, err := scpi.ParseResource(name)
		if err != nil {
			continue
		}
		switch {
		case r.Interface == scpi.InterfaceUSB && r.VendorID == scpi.RigolVendorID:
			return name, true
		case r.Interface == scpi.InterfaceTCPIP && lan == "":
			lan = name
		case r.Interface == scpi.InterfaceUSB && usb == "":
			usb = name
		}
	}

	if lan != "" {
		return lan, true
	}
	return usb, usb != ""
}

func save(rec *measurement.Record, base string) error {
	if err := rec.SaveCSV(base + ".csv"); err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	img, err := plot.Render(rec, plot.RenderConfig{})
	if err != nil {
		return fmt.Errorf("plotting record: %w", err)
	}
	if err = plot.SavePNG(base+".png", img); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}

	return nil
}
