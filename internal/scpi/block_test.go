package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseASCIIBlock(t *testing.T) {
	testCases := []struct {
		name  string
		block string
		want  []float64
	}{
		{"comma and space", "#9000000030 -7.52e+01, -7.61e+01, -6.9e+01\n", []float64{-75.2, -76.1, -69}},
		{"spaces only", "#9000000011 1.5 2.5 3", []float64{1.5, 2.5, 3}},
		{"value abuts header", "#90000000081.0,2.0", []float64{1, 2}},
		{"single value", "#9000000004 -10", []float64{-10}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseASCIIBlock(tc.block)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseASCIIBlock_Invalid(t *testing.T) {
	for name, block := range map[string]string{
		"empty":             "",
		"no marker":         "9000000004 1 2",
		"wrong digit count": "#8000000041 2",
		"truncated header":  "#90000",
		"bad length digits": "#9000x00004 1",
		"no values":         "#9000000000",
		"non numeric value": "#9000000004 1, abc",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseASCIIBlock(block)
			assert.ErrorIs(t, err, ErrInvalidBlock)
		})
	}
}
