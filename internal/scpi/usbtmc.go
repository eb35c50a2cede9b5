package scpi

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// RigolVendorID is the USB vendor id of Rigol Technologies
const RigolVendorID = 0x1AB1

const (
	usbtmcClass    = gousb.Class(0xFE)
	usbtmcSubClass = gousb.Class(0x03)

	msgDevDepMsgOut        = 1
	msgRequestDevDepMsgIn  = 2
	usbtmcHeaderLen        = 12
	usbtmcEOM              = 0x01
	usbtmcMaxTransferBytes = 1 << 20
)

var errUSBTMCHeader = errors.New("malformed USBTMC header")

// usbtmc is a USBTMC instrument reached over a pair of bulk endpoints. Only the
// message exchange needed for SCPI text is implemented.
type usbtmc struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint

	tag      byte
	pending  []byte
	deadline time.Time
}

func openUSBTMC(vendorID, productID uint16, serialNumber string) (*usbtmc, error) {
	usbCtx := gousb.NewContext()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendorID) && desc.Product == gousb.ID(productID)
	})
	if err != nil && len(devices) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("opening usb devices: %w", err)
	}

	var device *gousb.Device
	for _, d := range devices {
		if device == nil && matchesSerial(d, serialNumber) {
			device = d
			continue
		}
		d.Close()
	}
	if device == nil {
		usbCtx.Close()
		return nil, fmt.Errorf("usb device %04x:%04x (serial '%s') not found", vendorID, productID, serialNumber)
	}

	t, err := claimUSBTMC(device)
	if err != nil {
		device.Close()
		usbCtx.Close()
		return nil, err
	}
	t.ctx = usbCtx

	return t, nil
}

func matchesSerial(d *gousb.Device, serialNumber string) bool {
	if serialNumber == "" {
		return true
	}
	sn, err := d.SerialNumber()
	return err == nil && sn == serialNumber
}

func claimUSBTMC(device *gousb.Device) (*usbtmc, error) {
	if err := device.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("enabling kernel driver auto-detach: %w", err)
	}

	cfgNum, intfNum, alt, ok := findUSBTMCInterface(device.Desc)
	if !ok {
		return nil, fmt.Errorf("device %s has no USBTMC interface", device)
	}

	config, err := device.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("selecting configuration %d: %w", cfgNum, err)
	}
	intf, err := config.Interface(intfNum, alt)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("claiming interface %d: %w", intfNum, err)
	}

	t := usbtmc{device: device, config: config, intf: intf}
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && t.in == nil:
			t.in, err = intf.InEndpoint(ep.Number)
		case ep.Direction == gousb.EndpointDirectionOut && t.out == nil:
			t.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			intf.Close()
			config.Close()
			return nil, fmt.Errorf("opening endpoint %d: %w", ep.Number, err)
		}
	}
	if t.in == nil || t.out == nil {
		intf.Close()
		config.Close()
		return nil, fmt.Errorf("USBTMC interface %d lacks bulk endpoints", intfNum)
	}

	return &t, nil
}

func findUSBTMCInterface(desc *gousb.DeviceDesc) (cfg, intf, alt int, ok bool) {
	for cfgNum, c := range desc.Configs {
		for _, i := range c.Interfaces {
			for _, s := range i.AltSettings {
				if s.Class == usbtmcClass && s.SubClass == usbtmcSubClass {
					return cfgNum, i.Number, s.Alternate, true
				}
			}
		}
	}
	return 0, 0, 0, false
}

func hasUSBTMCInterface(desc *gousb.DeviceDesc) bool {
	_, _, _, ok := findUSBTMCInterface(desc)
	return ok
}

func (t *usbtmc) SetDeadline(deadline time.Time) error {
	t.deadline = deadline
	return nil
}

func (t *usbtmc) context() (context.Context, context.CancelFunc) {
	if t.deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), t.deadline)
}

// nextTag returns the next bTag, which cycles through 1..255
func (t *usbtmc) nextTag() byte {
	t.tag++
	if t.tag == 0 {
		t.tag = 1
	}
	return t.tag
}

func (t *usbtmc) Write(p []byte) (int, error) {
	ctx, cancel := t.context()
	defer cancel()

	if _, err := t.out.WriteContext(ctx, encodeDevDepMsgOut(t.nextTag(), p)); err != nil {
		return 0, fmt.Errorf("usbtmc write: %w", err)
	}
	return len(p), nil
}

// Read returns buffered message bytes, requesting a new device message when none are left
func (t *usbtmc) Read(p []byte) (int, error) {
	if len(t.pending) == 0 {
		if err := t.receive(); err != nil {
			return 0, err
		}
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *usbtmc) receive() error {
	ctx, cancel := t.context()
	defer cancel()

	for {
		tag := t.nextTag()
		if _, err := t.out.WriteContext(ctx, encodeRequestDevDepMsgIn(tag, usbtmcMaxTransferBytes)); err != nil {
			return fmt.Errorf("usbtmc request: %w", err)
		}

		buf := make([]byte, usbtmcHeaderLen+usbtmcMaxTransferBytes+3)
		n, err := t.in.ReadContext(ctx, buf)
		if err != nil {
			return fmt.Errorf("usbtmc read: %w", err)
		}

		size, eom, err := decodeDevDepMsgInHeader(buf[:n], tag)
		if err != nil {
			return err
		}

		// the payload may span several bulk-in transfers
		for n < usbtmcHeaderLen+size {
			m, err := t.in.ReadContext(ctx, buf[n:])
			if err != nil {
				return fmt.Errorf("usbtmc read: %w", err)
			}
			n += m
		}

		t.pending = append(t.pending, buf[usbtmcHeaderLen:usbtmcHeaderLen+size]...)
		if eom {
			return nil
		}
	}
}

func (t *usbtmc) Close() error {
	t.intf.Close()
	return errors.Join(t.config.Close(), t.device.Close(), t.ctx.Close())
}

// encodeDevDepMsgOut frames payload as a single DEV_DEP_MSG_OUT transfer with EOM set,
// padded to a multiple of four bytes.
func encodeDevDepMsgOut(tag byte, payload []byte) []byte {
	size := usbtmcHeaderLen + len(payload)
	size += (4 - size%4) % 4

	msg := make([]byte, size)
	writeHeader(msg, msgDevDepMsgOut, tag, uint32(len(payload)))
	msg[8] = usbtmcEOM
	copy(msg[usbtmcHeaderLen:], payload)

	return msg
}

func encodeRequestDevDepMsgIn(tag byte, maxSize uint32) []byte {
	msg := make([]byte, usbtmcHeaderLen)
	writeHeader(msg, msgRequestDevDepMsgIn, tag, maxSize)
	return msg
}

func writeHeader(msg []byte, msgID, tag byte, size uint32) {
	msg[0] = msgID
	msg[1] = tag
	msg[2] = ^tag
	binary.LittleEndian.PutUint32(msg[4:8], size)
}

// decodeDevDepMsgInHeader validates a DEV_DEP_MSG_IN header and returns the payload size
// and whether the end of message bit is set.
func decodeDevDepMsgInHeader(b []byte, tag byte) (int, bool, error) {
	if len(b) < usbtmcHeaderLen {
		return 0, false, fmt.Errorf("%w: %d bytes", errUSBTMCHeader, len(b))
	}
	if b[0] != msgRequestDevDepMsgIn {
		return 0, false, fmt.Errorf("%w: message id %d", errUSBTMCHeader, b[0])
	}
	if b[1] != tag || b[2] != ^tag {
		return 0, false, fmt.Errorf("%w: tag %d, expected %d", errUSBTMCHeader, b[1], tag)
	}

	size := binary.LittleEndian.Uint32(b[4:8])
	if size > usbtmcMaxTransferBytes {
		return 0, false, fmt.Errorf("%w: transfer size %d", errUSBTMCHeader, size)
	}

	return int(size), b[8]&usbtmcEOM != 0, nil
}
