package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/emctools/internal/measurement"
	"github.com/roman-kulish/emctools/internal/plot"
)

// Run renders a stored measurement record. Cached corrected and limit columns are plotted
// as stored; nothing is recomputed.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.InputFile); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("record file '%s' does not exist: %w", config.InputFile, err)
	}

	rec, err := measurement.LoadCSV(config.InputFile)
	if err != nil {
		return fmt.Errorf("loading record: %w", err)
	}

	trace := rec.Trace()
	logger.Info("loaded record",
		slog.String("title", rec.Title()),
		slog.Group("stats",
			slog.Int("points", trace.Len()),
			slog.String("minFreq", humanize.SIWithDigits(trace.StartFrequency(), 3, "Hz")),
			slog.String("maxFreq", humanize.SIWithDigits(trace.StopFrequency(), 3, "Hz")),
			slog.Any("components", rec.ComponentNames()),
			slog.Bool("corrected", rec.HasCorrected()),
			slog.Bool("limit", rec.Limit() != nil),
		))

	if err = ctx.Err(); err != nil {
		return err
	}

	logger.Info("rendering record",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := plot.Render(rec, config.RenderConfig())
	if err != nil {
		return fmt.Errorf("rendering record: %w", err)
	}

	if err = plot.SavePNG(config.OutputFile, img); err != nil {
		return err
	}

	if info, err := os.Stat(config.OutputFile); err == nil {
		logger.Debug("image written", slog.String("size", humanize.Bytes(uint64(info.Size()))))
	}

	return nil
}
