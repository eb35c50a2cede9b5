package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDevDepMsgOut(t *testing.T) {
	msg := encodeDevDepMsgOut(7, []byte("*IDN?\n"))

	require.Len(t, msg, 20, "12 byte header, 6 byte payload, 2 bytes padding")
	assert.Equal(t, []byte{1, 7, 0xF8, 0, 6, 0, 0, 0, 1, 0, 0, 0}, msg[:12])
	assert.Equal(t, []byte("*IDN?\n"), msg[12:18])
	assert.Equal(t, []byte{0, 0}, msg[18:])

	aligned := encodeDevDepMsgOut(1, []byte("*RST"))
	assert.Len(t, aligned, 16)
}

func TestEncodeRequestDevDepMsgIn(t *testing.T) {
	msg := encodeRequestDevDepMsgIn(2, 0x00100000)
	assert.Equal(t, []byte{2, 2, 0xFD, 0, 0x00, 0x00, 0x10, 0x00, 0, 0, 0, 0}, msg)
}

func TestDecodeDevDepMsgInHeader(t *testing.T) {
	header := []byte{2, 9, 0xF6, 0, 0x2A, 0, 0, 0, 1, 0, 0, 0}

	size, eom, err := decodeDevDepMsgInHeader(header, 9)
	require.NoError(t, err)
	assert.Equal(t, 42, size)
	assert.True(t, eom)

	header[8] = 0
	_, eom, err = decodeDevDepMsgInHeader(header, 9)
	require.NoError(t, err)
	assert.False(t, eom)

	for name, tc := range map[string]struct {
		header []byte
		tag    byte
	}{
		"short":        {header[:8], 9},
		"wrong msg id": {[]byte{1, 9, 0xF6, 0, 0, 0, 0, 0, 1, 0, 0, 0}, 9},
		"wrong tag":    {header, 10},
		"bad inverse":  {[]byte{2, 9, 0xF5, 0, 0, 0, 0, 0, 1, 0, 0, 0}, 9},
		"oversized":    {[]byte{2, 9, 0xF6, 0, 0, 0, 0, 0x10, 1, 0, 0, 0}, 9},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeDevDepMsgInHeader(tc.header, tc.tag)
			assert.ErrorIs(t, err, errUSBTMCHeader)
		})
	}
}

func TestUSBTMC_NextTagSkipsZero(t *testing.T) {
	var tmc usbtmc
	tmc.tag = 254

	assert.Equal(t, byte(255), tmc.nextTag())
	assert.Equal(t, byte(1), tmc.nextTag())
}
