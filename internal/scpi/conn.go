package scpi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout bounds a single write or query when the context carries no deadline
	DefaultTimeout = 5 * time.Second

	// DefaultBaudRate is used for ASRL resources
	DefaultBaudRate = 9600
)

// deadliner is implemented by transports that can bound blocking I/O
type deadliner interface {
	SetDeadline(t time.Time) error
}

// WithLogger sets the logger for the connection
func WithLogger(logger *slog.Logger) func(c *Conn) {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithTimeout sets the per-operation timeout applied when the context has no deadline
func WithTimeout(timeout time.Duration) func(c *Conn) {
	return func(c *Conn) {
		c.timeout = timeout
	}
}

// WithBaudRate sets the baud rate used to open ASRL resources
func WithBaudRate(baudRate int) func(c *Conn) {
	return func(c *Conn) {
		c.baudRate = baudRate
	}
}

// WithDiscovery replaces the resource discovery used to enrich connection errors
func WithDiscovery(discover func(ctx context.Context) []string) func(c *Conn) {
	return func(c *Conn) {
		c.discover = discover
	}
}

// Conn is a line-oriented SCPI connection. Commands are newline terminated, set commands
// are fire-and-forget and every query returns exactly one line.
type Conn struct {
	resource  string
	transport io.ReadWriteCloser
	reader    *bufio.Reader
	closed    atomic.Bool

	timeout  time.Duration
	baudRate int
	discover func(ctx context.Context) []string
	logger   *slog.Logger
}

func newConn(options ...func(c *Conn)) *Conn {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Conn{
		timeout:  DefaultTimeout,
		baudRate: DefaultBaudRate,
		logger:   logger,
	}
	c.discover = func(ctx context.Context) []string {
		return ListResources(ctx, c.logger)
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// New wraps an already open transport
func New(transport io.ReadWriteCloser, options ...func(c *Conn)) *Conn {
	c := newConn(options...)
	c.transport = transport
	c.reader = bufio.NewReader(transport)
	return c
}

// Open connects to the instrument named by resource. Failures to reach it are reported as
// *ConnectionError with the list of resources that could be discovered.
func Open(ctx context.Context, resource string, options ...func(c *Conn)) (*Conn, error) {
	c := newConn(options...)
	c.resource = resource
	c.logger = c.logger.With(slog.String("resource", resource))

	r, err := ParseResource(resource)
	if err != nil {
		return nil, err
	}

	var transport io.ReadWriteCloser
	switch r.Interface {
	case InterfaceTCPIP:
		transport, err = dialTCP(ctx, r.Address(), c.timeout)
	case InterfaceSerial:
		transport, err = openSerial(r.Device, c.baudRate)
	case InterfaceUSB:
		transport, err = openUSBTMC(r.VendorID, r.ProductID, r.Serial)
	}
	if err != nil {
		c.logger.Debug("connection failed, discovering resources", slog.Any("error", err))
		return nil, NewConnectionError(resource, c.discover(ctx), err)
	}

	c.transport = transport
	c.reader = bufio.NewReader(transport)

	c.logger.Debug("connected")

	return c, nil
}

// Resource returns the resource name the connection was opened with
func (c *Conn) Resource() string {
	return c.resource
}

// Write sends a command without waiting for a response
func (c *Conn) Write(ctx context.Context, command string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	release, err := c.bound(ctx)
	if err != nil {
		return err
	}
	defer release()

	return c.write(ctx, command)
}

// Query sends a command and reads one response line, without the line terminator
func (c *Conn) Query(ctx context.Context, command string) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	release, err := c.bound(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err = c.write(ctx, command); err != nil {
		return "", err
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading response to '%s': %w", command, contextError(ctx, err))
	}
	line = strings.TrimRight(line, "\r\n")

	c.logger.Debug("query", slog.String("command", command), slog.Int("responseBytes", len(line)))

	return line, nil
}

func (c *Conn) write(ctx context.Context, command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	if _, err := io.WriteString(c.transport, command); err != nil {
		return fmt.Errorf("writing '%s': %w", strings.TrimSpace(command), contextError(ctx, err))
	}
	return nil
}

// bound applies the context deadline, or the default timeout, to the transport and arranges
// for blocking I/O to be interrupted when the context is cancelled.
func (c *Conn) bound(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, ok := c.transport.(deadliner)
	if !ok {
		return func() {}, nil
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := d.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = d.SetDeadline(time.Unix(1, 0))
	})

	return func() { stop() }, nil
}

// Close closes the underlying transport. Closing twice is a no-op.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// contextError prefers the context's error over the I/O error caused by cancelling it
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}
