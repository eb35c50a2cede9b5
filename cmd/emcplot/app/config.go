package app

import (
	"errors"
	"flag"
	"strings"

	"github.com/roman-kulish/emctools/internal/plot"
)

type Config struct {
	InputFile  string
	OutputFile string
	Width      int
	Height     int
	Verbose    bool
}

func NewConfig() *Config {
	return &Config{
		Width:  1200,
		Height: 800,
	}
}

// NewConfigFromArgs parses the command line arguments. An empty output file is derived from
// the input file by replacing its extension with .png.
func NewConfigFromArgs(args []string) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("emcplot", flag.ContinueOnError)
	fs.StringVar(&c.InputFile, "i", "", "Path to the measurement record (CSV)")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output image (defaults to the input with .png)")
	fs.IntVar(&c.Width, "width", c.Width, "Image width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "Image height in pixels")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.InputFile == "" {
		err = errors.New("input file is required")
	} else if c.Width <= 0 || c.Height <= 0 {
		err = errors.New("image width and height must be positive")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	if c.OutputFile == "" {
		c.OutputFile = strings.TrimSuffix(c.InputFile, ".csv") + ".png"
	}
	return c, nil
}

// RenderConfig returns the plot layout for the configured size
func (c *Config) RenderConfig() plot.RenderConfig {
	return plot.RenderConfig{
		Width:  c.Width,
		Height: c.Height,
	}
}
