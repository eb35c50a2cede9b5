package scpi

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/gousb"
	"github.com/grandcat/zeroconf"
	"go.bug.st/serial"
)

// BrowseTimeout bounds mDNS browsing during discovery
const BrowseTimeout = 2 * time.Second

// mdnsServices advertised by LXI instruments
var mdnsServices = []string{"_scpi-raw._tcp", "_lxi._tcp"}

// ListResources returns the resource names of instruments that can be seen from this host:
// serial ports, USB devices from Rigol or with a USBTMC interface, and LAN instruments
// advertised over mDNS. Discovery failures are logged and skipped.
func ListResources(ctx context.Context, logger *slog.Logger) []string {
	var resources []string

	ports, err := serial.GetPortsList()
	if err != nil {
		logger.Warn("listing serial ports", slog.Any("error", err))
	}
	for _, port := range ports {
		resources = append(resources, Resource{Interface: InterfaceSerial, Device: port}.String())
	}

	usbResources, err := listUSB()
	if err != nil {
		logger.Warn("listing usb devices", slog.Any("error", err))
	}
	resources = append(resources, usbResources...)

	for _, service := range mdnsServices {
		found, err := browse(ctx, service)
		if err != nil {
			logger.Warn("browsing mdns", slog.String("service", service), slog.Any("error", err))
			continue
		}
		resources = append(resources, found...)
	}

	slices.Sort(resources)
	return slices.Compact(resources)
}

func listUSB() (resources []string, err error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(RigolVendorID) || hasUSBTMCInterface(desc)
	})
	for _, d := range devices {
		r := Resource{
			Interface: InterfaceUSB,
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
		}
		if sn, snErr := d.SerialNumber(); snErr == nil {
			r.Serial = sn
		}
		resources = append(resources, r.String())
		d.Close()
	}
	if err != nil {
		return resources, fmt.Errorf("opening usb devices: %w", err)
	}

	return resources, nil
}

func browse(ctx context.Context, service string) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err = resolver.Browse(ctx, service, "local.", entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", service, err)
	}

	// the resolver closes entries once the context is done
	var resources []string
	for entry := range entries {
		if len(entry.AddrIPv4) == 0 {
			continue
		}
		r := Resource{Interface: InterfaceTCPIP, Host: entry.AddrIPv4[0].String(), Port: DefaultSocketPort}
		if service == "_scpi-raw._tcp" && entry.Port > 0 {
			r.Port = entry.Port
		}
		resources = append(resources, r.String())
	}

	return resources, nil
}
