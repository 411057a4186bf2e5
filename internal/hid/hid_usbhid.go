//go:build !windows

package hid

import (
	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func newManager() (Manager, error) { return &usbManager{}, nil }

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Product:      d.Product(),
			Manufacturer: d.Manufacturer(),
		})
	}
	return out, nil
}

type usbDevice struct{ d *usbhid.Device }

// Open opens the device at info.Path and takes an exclusive lock on it.
func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, true)
	if err != nil {
		return nil, err
	}
	return &usbDevice{d}, nil
}

func (d *usbDevice) WriteReport(r Report) error {
	return d.d.SetOutputReport(r.ID, r.Data)
}

func (d *usbDevice) ReadReport() (Report, error) {
	id, buf, err := d.d.GetInputReport()
	if err != nil {
		return Report{}, err
	}
	return Report{ID: id, Data: buf}, nil
}

func (d *usbDevice) Close() error { return d.d.Close() }
