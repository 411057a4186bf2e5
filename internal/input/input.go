// Package input turns Linux input device gestures into remote actions.
package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
)

// Linux input event types and codes (linux/input-event-codes.h).
const (
	EvKey     uint16 = 0x01
	EvRel     uint16 = 0x02
	RelWheel  uint16 = 0x08
	BtnMiddle uint16 = 0x112
)

// EV_KEY values.
const (
	valueRelease int32 = 0
	valuePress   int32 = 1
	valueRepeat  int32 = 2
)

var (
	ErrNoDevices   = errors.New("no input devices configured")
	ErrUnsupported = errors.New("input devices are only supported on linux")
)

// Event mirrors struct input_event on 64-bit Linux:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// EventSize is the wire size of one Event.
var EventSize = binary.Size(Event{})

func decodeEvent(b []byte) (Event, error) {
	var ev Event
	if len(b) < EventSize {
		return ev, fmt.Errorf("short input event: %d bytes", len(b))
	}
	err := binary.Read(bytes.NewReader(b[:EventSize]), binary.LittleEndian, &ev)
	return ev, err
}

// Router receives action names.
type Router interface {
	Route(name string) error
}

// Mapping assigns action names to gestures. An empty name disables the
// gesture.
type Mapping struct {
	WheelUp     string
	WheelDown   string
	MiddleClick string
	Keys        map[uint16]string
}

// Translate returns the action name bound to ev, if any. Key releases and
// autorepeat are ignored.
func (m Mapping) Translate(ev Event) (string, bool) {
	switch ev.Type {
	case EvRel:
		if ev.Code != RelWheel {
			return "", false
		}
		switch {
		case ev.Value > 0:
			return m.WheelUp, m.WheelUp != ""
		case ev.Value < 0:
			return m.WheelDown, m.WheelDown != ""
		}
	case EvKey:
		if ev.Value != valuePress {
			return "", false
		}
		if ev.Code == BtnMiddle && m.MiddleClick != "" {
			return m.MiddleClick, true
		}
		name, ok := m.Keys[ev.Code]
		return name, ok && name != ""
	}
	return "", false
}

// Source reads gestures and routes the mapped actions.
type Source struct {
	mapping Mapping
	router  Router
	logger  *slog.Logger
}

func NewSource(m Mapping, r Router, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{mapping: m, router: r, logger: logger}
}

// Handle routes a single event. Routing errors are already reported by the
// router and are only logged here at debug level.
func (s *Source) Handle(ev Event) {
	name, ok := s.mapping.Translate(ev)
	if !ok {
		return
	}
	s.logger.Debug("input gesture", "type", ev.Type, "code", ev.Code, "value", ev.Value, "action", name)
	if err := s.router.Route(name); err != nil {
		s.logger.Debug("input route failed", "action", name, "error", err)
	}
}
