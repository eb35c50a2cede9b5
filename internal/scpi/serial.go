package scpi

import (
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
)

// serialPort adapts a serial port to the deadline model used by Conn. A read that times out
// returns os.ErrDeadlineExceeded rather than zero bytes.
type serialPort struct {
	port     serial.Port
	deadline time.Time
}

func openSerial(device string, baudRate int) (*serialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", device, err)
	}

	return &serialPort{port: port}, nil
}

func (s *serialPort) SetDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

func (s *serialPort) Read(p []byte) (int, error) {
	timeout := serial.NoTimeout
	if !s.deadline.IsZero() {
		timeout = time.Until(s.deadline)
		if timeout <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
	}
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("setting read timeout: %w", err)
	}

	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}

func (s *serialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialPort) Close() error {
	return s.port.Close()
}
