package plot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"

	"github.com/roman-kulish/emctools/internal/measurement"
)

// Render charts a record with the given layout
func Render(rec *measurement.Record, config RenderConfig) (*image.RGBA, error) {
	chart, err := FromRecord(rec)
	if err != nil {
		return nil, err
	}

	renderer, err := NewRenderer(config)
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	return renderer.Render(chart)
}

// WritePNG encodes the image as PNG
func WritePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// SavePNG writes the image to path as PNG
func SavePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return WritePNG(f, img)
}
