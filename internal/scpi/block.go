package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// blockHeaderLen is '#', the digit count '9' and nine length digits
const blockHeaderLen = 11

// ParseASCIIBlock parses a definite-length block of ASCII numbers as returned by
// :TRACe:DATA? in ASCii format: "#9" followed by a 9 digit byte count and values
// separated by commas and/or spaces.
func ParseASCIIBlock(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '#' {
		return nil, fmt.Errorf("%w: missing '#' marker", ErrInvalidBlock)
	}
	if s[1] != '9' {
		return nil, fmt.Errorf("%w: expected '#9' header, got '%s'", ErrInvalidBlock, s[:2])
	}
	if len(s) < blockHeaderLen {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidBlock)
	}
	if _, err := strconv.ParseUint(s[2:blockHeaderLen], 10, 64); err != nil {
		return nil, fmt.Errorf("%w: bad length digits '%s'", ErrInvalidBlock, s[2:blockHeaderLen])
	}

	fields := strings.Fields(strings.ReplaceAll(s[blockHeaderLen:], ",", " "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrInvalidBlock)
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %w", ErrInvalidBlock, i, err)
		}
		values[i] = v
	}

	return values, nil
}
