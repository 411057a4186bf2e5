// Package hidtest provides an in-memory IR transmitter for tests.
package hidtest

import (
	"errors"
	"sync"
	"time"

	"github.com/seagrayinc/irremote/internal/hid"
	"github.com/seagrayinc/irremote/internal/irframe"
)

var ErrClosed = errors.New("mock device closed")

// Manager hands out a single mock device.
type Manager struct {
	Infos   []hid.Info
	Device  *Device
	OpenErr error

	mu     sync.Mutex
	opened int
}

func NewManager(info hid.Info, dev *Device) *Manager {
	return &Manager{Infos: []hid.Info{info}, Device: dev}
}

func (m *Manager) List() ([]hid.Info, error) {
	return m.Infos, nil
}

func (m *Manager) Open(info hid.Info) (hid.Device, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.Lock()
	m.opened++
	m.mu.Unlock()
	return m.Device, nil
}

// Opened returns how many times Open succeeded.
func (m *Manager) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Device reassembles frames from written reports, records every raw
// transmit command and answers each frame with an ack report.
type Device struct {
	// Latency is slept once per completed frame to mimic the IR burst.
	Latency time.Duration
	// Status is returned in every ack.
	Status byte
	// WriteErr fails every WriteReport when set.
	WriteErr error

	mu       sync.Mutex
	pending  []byte
	acks     []hid.Report
	sent     []irframe.TransmitRawCommand
	reports  int
	closed   bool
	closes   int
	inFlight int
	maxIn    int
}

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) WriteReport(r hid.Report) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.WriteErr != nil {
		d.mu.Unlock()
		return d.WriteErr
	}
	d.reports++
	d.inFlight++
	if d.inFlight > d.maxIn {
		d.maxIn = d.inFlight
	}
	d.pending = append(d.pending, r.Data...)
	frames, complete := d.takeFramesLocked()
	d.mu.Unlock()

	if complete && d.Latency > 0 {
		time.Sleep(d.Latency)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	for _, f := range frames {
		if cmd, err := irframe.DecodeTransmitRaw(f); err == nil {
			d.sent = append(d.sent, cmd)
		}
		d.acks = append(d.acks, hid.Report{ID: r.ID, Data: irframe.Encode(irframe.Ack(d.Status))})
	}
	return nil
}

// takeFramesLocked pulls finished frames out of the pending buffer.
func (d *Device) takeFramesLocked() ([]irframe.Command, bool) {
	end := -1
	for i, b := range d.pending {
		if b == irframe.StopFlag {
			end = i
		}
	}
	if end == -1 {
		return nil, false
	}
	frames, _ := irframe.ParseFrames(d.pending[:end+1])
	d.pending = d.pending[end+1:]
	return frames, true
}

func (d *Device) ReadReport() (hid.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return hid.Report{}, ErrClosed
	}
	if len(d.acks) == 0 {
		return hid.Report{}, errors.New("no input report pending")
	}
	r := d.acks[0]
	d.acks = d.acks[1:]
	return r, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.closes++
	return nil
}

// Sent returns the transmit commands received so far.
func (d *Device) Sent() []irframe.TransmitRawCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]irframe.TransmitRawCommand(nil), d.sent...)
}

// Reports returns how many output reports were written.
func (d *Device) Reports() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reports
}

// MaxConcurrent is the highest number of overlapping WriteReport calls seen.
func (d *Device) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxIn
}

func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}
