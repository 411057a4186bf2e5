//go:build windows

package hid

import (
	"fmt"
	"sync"

	"github.com/karalabe/usb"
)

// On Windows the hidapi backend of karalabe/usb is used.
type karalabeManager struct {
	mu    sync.Mutex
	infos map[string]usb.DeviceInfo
}

func newManager() (Manager, error) {
	if !usb.Supported() {
		return nil, fmt.Errorf("usb: platform not supported by hidapi backend")
	}
	return &karalabeManager{infos: make(map[string]usb.DeviceInfo)}, nil
}

func (m *karalabeManager) List() ([]Info, error) {
	infos, err := usb.EnumerateHid(0, 0)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(infos))
	for _, i := range infos {
		m.infos[i.Path] = i
		out = append(out, Info{
			Path:         i.Path,
			VendorID:     i.VendorID,
			ProductID:    i.ProductID,
			Product:      i.Product,
			Manufacturer: i.Manufacturer,
		})
	}
	return out, nil
}

func (m *karalabeManager) Open(info Info) (Device, error) {
	m.mu.Lock()
	i, ok := m.infos[info.Path]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("device %s was not enumerated", info.Path)
	}

	dev, err := i.Open()
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &karalabeDevice{dev: dev, readSize: 64}, nil
}

type karalabeDevice struct {
	dev      usb.Device
	readSize int
}

// WriteReport sends report ID followed by data, the layout hidapi expects.
func (d *karalabeDevice) WriteReport(r Report) error {
	if _, err := d.dev.Write(r.Bytes()); err != nil {
		return fmt.Errorf("usb write: %w", err)
	}
	return nil
}

func (d *karalabeDevice) ReadReport() (Report, error) {
	buf := make([]byte, d.readSize+1)
	n, err := d.dev.Read(buf)
	if err != nil {
		return Report{}, fmt.Errorf("usb read: %w", err)
	}
	if n == 0 {
		return Report{}, fmt.Errorf("usb read: empty report")
	}
	return Report{ID: buf[0], Data: append([]byte(nil), buf[1:n]...)}, nil
}

func (d *karalabeDevice) Close() error {
	return d.dev.Close()
}
