// Package session owns the connection to the USB IR transmitter.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/seagrayinc/irremote/internal/hid"
	"github.com/seagrayinc/irremote/internal/irframe"
)

const (
	FlircVID        uint16 = 0x20A0
	FlircProductTag        = "flirc.tv"

	DefaultReportID     byte = 0x01
	DefaultReportLength      = 64
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNotInitialized = errors.New("device not initialized")
	ErrTransmit       = errors.New("transmit failed")
)

type options struct {
	logger       *slog.Logger
	reportID     byte
	reportLength int
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReport sets the output report ID and payload length used for frames.
func WithReport(id byte, length int) Option {
	return func(o *options) {
		o.reportID = id
		o.reportLength = length
	}
}

// Session is a handle to one opened transmitter. The zero value is an
// unopened session: TransmitRaw fails with ErrNotInitialized and Close is a
// no-op. All methods are safe for concurrent use and transmissions are
// serialized, since the device cannot service overlapping transmits.
type Session struct {
	mu     sync.Mutex
	dev    hid.Device
	info   hid.Info
	opts   options
	logger *slog.Logger
}

// Open finds the first HID device with the given vendor ID whose
// manufacturer or product string contains productTag and opens it.
func Open(mgr hid.Manager, vendorID uint16, productTag string, opts ...Option) (*Session, error) {
	o := options{
		logger:       slog.Default(),
		reportID:     DefaultReportID,
		reportLength: DefaultReportLength,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reportLength <= 0 {
		return nil, fmt.Errorf("invalid report length %d", o.reportLength)
	}

	infos, err := mgr.List()
	if err != nil {
		return nil, fmt.Errorf("hid enumerate: %w", err)
	}

	for _, info := range infos {
		if !matches(info, vendorID, productTag) {
			continue
		}

		dev, err := mgr.Open(info)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", info.Path, err)
		}

		o.logger.Info("IR transmitter opened",
			slog.String("path", info.Path),
			slog.String("manufacturer", info.Manufacturer),
			slog.String("product", info.Product))

		return &Session{dev: dev, info: info, opts: o, logger: o.logger}, nil
	}

	return nil, fmt.Errorf("%w (VID:0x%04X tag:%q); found %d other HID devices", ErrDeviceNotFound, vendorID, productTag, len(infos))
}

func matches(info hid.Info, vendorID uint16, productTag string) bool {
	if info.VendorID != vendorID {
		return false
	}
	if productTag == "" {
		return true
	}
	tag := strings.ToLower(productTag)
	return strings.Contains(strings.ToLower(info.Manufacturer), tag) ||
		strings.Contains(strings.ToLower(info.Product), tag)
}

// IsOpen reports whether the session holds an open device.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Info describes the opened device.
func (s *Session) Info() hid.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Close releases the device. Closing an unopened or already closed session
// does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	if s.logger != nil {
		s.logger.Info("IR transmitter closed", slog.String("path", s.info.Path))
	}
	if err != nil {
		return fmt.Errorf("close device: %w", err)
	}
	return nil
}

// TransmitRaw sends pulses (microseconds, alternating mark/space starting
// with a mark) on the given carrier. repeats counts retransmissions after
// the first burst. The call blocks until the device acknowledges.
func (s *Session) TransmitRaw(pulses []uint16, frequencyHz uint16, repeats uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return ErrNotInitialized
	}

	cmd, err := irframe.TransmitRaw(pulses, frequencyHz, repeats)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}

	frame := irframe.Encode(cmd)
	s.logger.Debug("writing transmit frame",
		slog.Int("pulses", len(pulses)),
		slog.String("frame", irframe.EncodeReportToString(frame)))

	for _, chunk := range irframe.Chunk(frame, s.opts.reportLength) {
		if err := s.dev.WriteReport(hid.Report{ID: s.opts.reportID, Data: chunk}); err != nil {
			return fmt.Errorf("%w: write report: %w", ErrTransmit, err)
		}
	}

	return s.readAck()
}

func (s *Session) readAck() error {
	r, err := s.dev.ReadReport()
	if err != nil {
		return fmt.Errorf("%w: read ack: %w", ErrTransmit, err)
	}

	frames, err := irframe.ParseFrames(r.Data)
	if err != nil {
		return fmt.Errorf("%w: parse ack: %w", ErrTransmit, err)
	}

	status, err := irframe.AckStatus(frames[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	if status != irframe.StatusOK {
		return fmt.Errorf("%w: device reported %s", ErrTransmit, irframe.StatusText(status))
	}
	return nil
}
