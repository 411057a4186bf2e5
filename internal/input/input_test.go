package input

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

type fakeRouter struct {
	routed []string
	err    error
}

func (f *fakeRouter) Route(name string) error {
	f.routed = append(f.routed, name)
	return f.err
}

func testMapping() Mapping {
	return Mapping{
		WheelUp:     "Up",
		WheelDown:   "Down",
		MiddleClick: "Select",
		Keys:        map[uint16]string{116: "Power", 113: "Pause/Mute"},
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		ev     Event
		want   string
		wantOK bool
	}{
		{"wheel up", Event{Type: EvRel, Code: RelWheel, Value: 1}, "Up", true},
		{"wheel down", Event{Type: EvRel, Code: RelWheel, Value: -2}, "Down", true},
		{"wheel zero", Event{Type: EvRel, Code: RelWheel, Value: 0}, "", false},
		{"horizontal wheel", Event{Type: EvRel, Code: 0x06, Value: 1}, "", false},
		{"middle press", Event{Type: EvKey, Code: BtnMiddle, Value: valuePress}, "Select", true},
		{"middle release", Event{Type: EvKey, Code: BtnMiddle, Value: valueRelease}, "", false},
		{"key press", Event{Type: EvKey, Code: 116, Value: valuePress}, "Power", true},
		{"key repeat", Event{Type: EvKey, Code: 116, Value: valueRepeat}, "", false},
		{"unmapped key", Event{Type: EvKey, Code: 30, Value: valuePress}, "", false},
		{"sync", Event{Type: 0x00, Code: 0, Value: 0}, "", false},
	}

	m := testMapping()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Translate(tt.ev)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Translate = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTranslateDisabledGesture(t *testing.T) {
	m := Mapping{Keys: map[uint16]string{BtnMiddle: "Mode"}}
	if _, ok := m.Translate(Event{Type: EvRel, Code: RelWheel, Value: 1}); ok {
		t.Fatal("wheel should be disabled")
	}
	got, ok := m.Translate(Event{Type: EvKey, Code: BtnMiddle, Value: valuePress})
	if !ok || got != "Mode" {
		t.Fatalf("middle click falls back to keys: got (%q, %v)", got, ok)
	}
}

func TestHandleRoutes(t *testing.T) {
	r := &fakeRouter{err: errors.New("unknown action")}
	s := NewSource(testMapping(), r, nil)

	for _, ev := range []Event{
		{Type: EvRel, Code: RelWheel, Value: 1},
		{Type: EvKey, Code: BtnMiddle, Value: valuePress},
		{Type: EvKey, Code: BtnMiddle, Value: valueRelease},
		{Type: EvRel, Code: RelWheel, Value: -1},
	} {
		s.Handle(ev)
	}

	want := []string{"Up", "Select", "Down"}
	if !reflect.DeepEqual(r.routed, want) {
		t.Fatalf("routed %v, want %v", r.routed, want)
	}
}

func TestDecodeEvent(t *testing.T) {
	in := Event{Sec: 1700000000, Usec: 42, Type: EvRel, Code: RelWheel, Value: -1}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, in); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 24 {
		t.Fatalf("event size %d, want 24", buf.Len())
	}

	got, err := decodeEvent(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if got != in {
		t.Fatalf("decoded %+v, want %+v", got, in)
	}

	if _, err := decodeEvent(buf.Bytes()[:10]); err == nil {
		t.Fatal("expected error for short event")
	}
}

func TestRunWithoutDevices(t *testing.T) {
	s := NewSource(testMapping(), &fakeRouter{}, nil)
	if err := s.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}
