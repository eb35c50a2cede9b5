package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const record = `Bench test
"""trace_mode""","""units"""
"""MAXHold""","""DBUV"""
Frequency (Hz),DSA,antenna,Corrected,Limit
3e+07,20,18.2,38.2,40
1e+08,25,10.5,35.5,40
3e+08,22,14,36,47
1e+09,18,23.5,41.5,47
`

func TestNewConfigFromArgs(t *testing.T) {
	config, err := NewConfigFromArgs([]string{"-i", "trace-2024-01-02-030405.csv", "-width", "800"})
	require.NoError(t, err)

	assert.Equal(t, "trace-2024-01-02-030405.png", config.OutputFile)
	assert.Equal(t, 800, config.Width)
	assert.Equal(t, 800, config.Height)

	config, err = NewConfigFromArgs([]string{"-i", "in.csv", "-o", "out.png"})
	require.NoError(t, err)
	assert.Equal(t, "out.png", config.OutputFile)
}

func TestNewConfigFromArgs_Invalid(t *testing.T) {
	_, err := NewConfigFromArgs(nil)
	assert.Error(t, err)

	_, err = NewConfigFromArgs([]string{"-i", "in.csv", "-height", "0"})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "trace.csv")
	require.NoError(t, os.WriteFile(input, []byte(record), 0o644))

	config, err := NewConfigFromArgs([]string{"-i", input, "-width", "640", "-height", "480"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, Run(context.Background(), config, logger))
	assert.FileExists(t, filepath.Join(dir, "trace.png"))
}

func TestRun_MissingInput(t *testing.T) {
	config := NewConfig()
	config.InputFile = filepath.Join(t.TempDir(), "missing.csv")
	config.OutputFile = filepath.Join(t.TempDir(), "missing.png")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Error(t, Run(context.Background(), config, logger))
}
