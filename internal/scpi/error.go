package scpi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidBlock is returned when a trace response is not a well-formed #9 block
	ErrInvalidBlock = errors.New("invalid data block")

	// ErrInvalidResource is returned for resource names that cannot be parsed
	ErrInvalidResource = errors.New("invalid resource name")

	// ErrClosed is returned when using a closed connection
	ErrClosed = errors.New("connection closed")
)

// ConnectionError is returned when an instrument cannot be reached. Discovered lists the
// resources that were visible at the time, to help pick the right one.
type ConnectionError struct {
	Resource   string
	Discovered []string
	err        error
}

func NewConnectionError(resource string, discovered []string, err error) *ConnectionError {
	return &ConnectionError{
		Resource:   resource,
		Discovered: discovered,
		err:        err,
	}
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot connect to '%s'", e.Resource)
	if e.err != nil {
		fmt.Fprintf(&b, ": %v", e.err)
	}
	if len(e.Discovered) == 0 {
		b.WriteString(" (no resources discovered)")
	} else {
		fmt.Fprintf(&b, " (discovered: %s)", strings.Join(e.Discovered, ", "))
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error {
	return e.err
}
