package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResource(t *testing.T) {
	testCases := []struct {
		name      string
		resource  string
		want      Resource
		canonical string
	}{
		{
			name:      "socket with port",
			resource:  "TCPIP0::192.168.1.20::5555::SOCKET",
			want:      Resource{Interface: InterfaceTCPIP, Host: "192.168.1.20", Port: 5555},
			canonical: "TCPIP0::192.168.1.20::5555::SOCKET",
		},
		{
			name:      "socket default port",
			resource:  "TCPIP::dsa815.local::SOCKET",
			want:      Resource{Interface: InterfaceTCPIP, Host: "dsa815.local", Port: DefaultSocketPort},
			canonical: "TCPIP0::dsa815.local::5555::SOCKET",
		},
		{
			name:      "vxi11 device name rejected",
			resource:  "tcpip1::10.0.0.7::inst0::INSTR",
			want:      Resource{},
			canonical: "",
		},
		{
			name:      "lan instr",
			resource:  "TCPIP1::10.0.0.7::INSTR",
			want:      Resource{Interface: InterfaceTCPIP, Board: 1, Host: "10.0.0.7", Port: DefaultSocketPort},
			canonical: "TCPIP1::10.0.0.7::5555::SOCKET",
		},
		{
			name:      "serial",
			resource:  "ASRL/dev/ttyUSB0::INSTR",
			want:      Resource{Interface: InterfaceSerial, Device: "/dev/ttyUSB0"},
			canonical: "ASRL/dev/ttyUSB0::INSTR",
		},
		{
			name:      "usb with serial",
			resource:  "USB0::0x1AB1::0x0960::DSA8A123456789::INSTR",
			want:      Resource{Interface: InterfaceUSB, VendorID: 0x1AB1, ProductID: 0x0960, Serial: "DSA8A123456789"},
			canonical: "USB0::0x1AB1::0x0960::DSA8A123456789::INSTR",
		},
		{
			name:      "usb decimal ids without serial",
			resource:  "USB::6833::2400::INSTR",
			want:      Resource{Interface: InterfaceUSB, VendorID: 0x1AB1, ProductID: 0x0960},
			canonical: "USB0::0x1AB1::0x0960::INSTR",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseResource(tc.resource)
			if tc.canonical == "" {
				assert.ErrorIs(t, err, ErrInvalidResource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.canonical, got.String())
		})
	}
}

func TestParseResource_Invalid(t *testing.T) {
	for _, name := range []string{
		"",
		"192.168.1.20",
		"GPIB0::1::INSTR",
		"TCPIP::host::70000::SOCKET",
		"TCPIP::::SOCKET",
		"TCPIPx::host::SOCKET",
		"TCPIP::host::hislip0",
		"ASRL::INSTR",
		"USB::0xZZZZ::0x0960::INSTR",
		"USB::0x1AB1::INSTR",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResource(name)
			assert.ErrorIs(t, err, ErrInvalidResource)
		})
	}
}

func TestResource_Address(t *testing.T) {
	r := Resource{Interface: InterfaceTCPIP, Host: "10.0.0.1", Port: 5025}
	assert.Equal(t, "10.0.0.1:5025", r.Address())
}
