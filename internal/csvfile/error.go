package csvfile

import "fmt"

// FormatError is returned when a comma-separated file does not have the expected
// layout: a missing header row, a non-numeric cell or a row of the wrong width.
type FormatError struct {
	Source string // File name or other description of the input
	Line   int    // 1-based line number, 0 when not tied to a line
	msg    string
	err    error
}

func NewFormatError(source string, line int, msg string) *FormatError {
	return &FormatError{Source: source, Line: line, msg: msg}
}

// WrapFormatError returns a FormatError that unwraps to err
func WrapFormatError(source string, line int, msg string, err error) *FormatError {
	return &FormatError{Source: source, Line: line, msg: msg, err: err}
}

func (e *FormatError) Error() string {
	return describe("format error", e.Source, e.Line, e.msg, e.err)
}

func (e *FormatError) Unwrap() error {
	return e.err
}

// DataError is returned when a file parses but its contents violate an invariant,
// e.g. too few calibration points or frequencies out of order.
type DataError struct {
	Source string
	Line   int
	msg    string
}

func NewDataError(source string, line int, msg string) *DataError {
	return &DataError{Source: source, Line: line, msg: msg}
}

func (e *DataError) Error() string {
	return describe("data error", e.Source, e.Line, e.msg, nil)
}

func describe(kind, source string, line int, msg string, err error) string {
	s := kind
	if source != "" {
		s = fmt.Sprintf("%s in %s", s, source)
	}
	if line > 0 {
		s = fmt.Sprintf("%s at line %d", s, line)
	}
	s = fmt.Sprintf("%s: %s", s, msg)
	if err != nil {
		s = fmt.Sprintf("%s: %s", s, err.Error())
	}
	return s
}
