// Package hid is the thin layer between the device session and the
// operating system's HID stack.
package hid

import "fmt"

// Report is a single HID report. Data excludes the report ID.
type Report struct {
	ID   byte
	Data []byte
}

func (r Report) Bytes() []byte {
	b := make([]byte, len(r.Data)+1)
	b[0] = r.ID
	copy(b[1:], r.Data)
	return b
}

// Device represents an opened HID device capable of report I/O.
type Device interface {
	WriteReport(Report) error // send output report
	ReadReport() (Report, error)
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

func (i Info) String() string {
	return fmt.Sprintf("%04x:%04x %s %s (%s)", i.VendorID, i.ProductID, i.Manufacturer, i.Product, i.Path)
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
}

// NewManager returns the OS-specific HID manager.
func NewManager() (Manager, error) {
	return newManager()
}
