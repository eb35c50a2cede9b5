package scpi

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultSocketPort is the raw SCPI socket port of Rigol instruments
const DefaultSocketPort = 5555

// Interface is the bus a resource lives on
type Interface string

const (
	InterfaceTCPIP  Interface = "TCPIP"
	InterfaceSerial Interface = "ASRL"
	InterfaceUSB    Interface = "USB"
)

// Resource is a parsed VISA-style resource name, e.g. TCPIP0::192.168.1.20::5555::SOCKET,
// ASRL/dev/ttyUSB0::INSTR or USB0::0x1AB1::0x0960::DSA8A123456789::INSTR.
type Resource struct {
	Interface Interface
	Board     int

	// TCPIP
	Host string
	Port int

	// ASRL
	Device string

	// USB
	VendorID  uint16
	ProductID uint16
	Serial    string
}

// ParseResource parses a resource name. Matching of the interface and the resource
// class is case-insensitive.
func ParseResource(name string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(name), "::")
	if len(parts) < 2 {
		return Resource{}, fmt.Errorf("%w: '%s'", ErrInvalidResource, name)
	}

	head := parts[0]
	class := strings.ToUpper(parts[len(parts)-1])
	upper := strings.ToUpper(head)

	switch {
	case strings.HasPrefix(upper, string(InterfaceTCPIP)):
		board, err := parseBoard(head[len(InterfaceTCPIP):])
		if err != nil {
			return Resource{}, fmt.Errorf("%w: '%s': %w", ErrInvalidResource, name, err)
		}
		return parseTCPIP(name, board, parts[1:len(parts)-1], class)

	case strings.HasPrefix(upper, string(InterfaceSerial)):
		device := head[len(InterfaceSerial):]
		if device == "" || len(parts) != 2 || class != "INSTR" {
			return Resource{}, fmt.Errorf("%w: '%s': expected ASRL<device>::INSTR", ErrInvalidResource, name)
		}
		return Resource{Interface: InterfaceSerial, Device: device}, nil

	case strings.HasPrefix(upper, string(InterfaceUSB)):
		board, err := parseBoard(head[len(InterfaceUSB):])
		if err != nil {
			return Resource{}, fmt.Errorf("%w: '%s': %w", ErrInvalidResource, name, err)
		}
		return parseUSB(name, board, parts[1:len(parts)-1], class)
	}

	return Resource{}, fmt.Errorf("%w: '%s': unsupported interface", ErrInvalidResource, name)
}

func parseTCPIP(name string, board int, fields []string, class string) (Resource, error) {
	r := Resource{Interface: InterfaceTCPIP, Board: board, Port: DefaultSocketPort}

	switch class {
	case "SOCKET":
		switch len(fields) {
		case 1:
		case 2:
			port, err := strconv.Atoi(fields[1])
			if err != nil || port <= 0 || port > 65535 {
				return Resource{}, fmt.Errorf("%w: '%s': bad port '%s'", ErrInvalidResource, name, fields[1])
			}
			r.Port = port
		default:
			return Resource{}, fmt.Errorf("%w: '%s': expected TCPIP::<host>[::<port>]::SOCKET", ErrInvalidResource, name)
		}
	case "INSTR":
		if len(fields) != 1 {
			return Resource{}, fmt.Errorf("%w: '%s': expected TCPIP::<host>::INSTR", ErrInvalidResource, name)
		}
	default:
		return Resource{}, fmt.Errorf("%w: '%s': unsupported resource class '%s'", ErrInvalidResource, name, class)
	}

	if fields[0] == "" {
		return Resource{}, fmt.Errorf("%w: '%s': empty host", ErrInvalidResource, name)
	}
	r.Host = fields[0]

	return r, nil
}

func parseUSB(name string, board int, fields []string, class string) (Resource, error) {
	if class != "INSTR" || len(fields) < 2 || len(fields) > 3 {
		return Resource{}, fmt.Errorf("%w: '%s': expected USB::<vid>::<pid>[::<serial>]::INSTR", ErrInvalidResource, name)
	}

	vid, err := strconv.ParseUint(fields[0], 0, 16)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: '%s': bad vendor id: %w", ErrInvalidResource, name, err)
	}
	pid, err := strconv.ParseUint(fields[1], 0, 16)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: '%s': bad product id: %w", ErrInvalidResource, name, err)
	}

	r := Resource{
		Interface: InterfaceUSB,
		Board:     board,
		VendorID:  uint16(vid),
		ProductID: uint16(pid),
	}
	if len(fields) == 3 {
		r.Serial = fields[2]
	}

	return r, nil
}

func parseBoard(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	board, err := strconv.Atoi(s)
	if err != nil || board < 0 {
		return 0, fmt.Errorf("bad board number '%s'", s)
	}
	return board, nil
}

// Address returns host:port for TCPIP resources
func (r Resource) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// String returns the canonical resource name
func (r Resource) String() string {
	switch r.Interface {
	case InterfaceTCPIP:
		return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", r.Board, r.Host, r.Port)
	case InterfaceSerial:
		return fmt.Sprintf("ASRL%s::INSTR", r.Device)
	case InterfaceUSB:
		if r.Serial == "" {
			return fmt.Sprintf("USB%d::0x%04X::0x%04X::INSTR", r.Board, r.VendorID, r.ProductID)
		}
		return fmt.Sprintf("USB%d::0x%04X::0x%04X::%s::INSTR", r.Board, r.VendorID, r.ProductID, r.Serial)
	}
	return ""
}
