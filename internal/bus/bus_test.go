package bus

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/seagrayinc/irremote/pkg/dispatch"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu        sync.Mutex
	handlers  map[string]nats.MsgHandler
	published []published
}

func (f *fakeConn) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]nats.MsgHandler)
	}
	f.handlers[subject] = cb
	return nil, nil
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{subject, append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) handler(subject string) nats.MsgHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[subject]
}

type fakeRouter struct {
	routed []string
}

func (f *fakeRouter) Route(name string) error {
	if _, err := waveform.ParseAction(name); err != nil {
		return err
	}
	f.routed = append(f.routed, name)
	return nil
}

var testConfig = Config{ActionSubject: "irremote.actions", ResultSubject: "irremote.transmissions"}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Power", "Power", false},
		{"  Volume +\n", "Volume +", false},
		{`{"action":"Pause/Mute"}`, "Pause/Mute", false},
		{"", "", true},
		{`{"action":""}`, "", true},
		{`{"action":`, "", true},
	}
	for _, tt := range tests {
		got, err := parseAction([]byte(tt.in))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseAction(%q) = (%q, %v), want %q (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestRunRoutesActions(t *testing.T) {
	conn := &fakeConn{}
	r := &fakeRouter{}
	b := New(conn, r, testConfig, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	var h nats.MsgHandler
	deadline := time.Now().Add(time.Second)
	for h == nil && time.Now().Before(deadline) {
		h = conn.handler(testConfig.ActionSubject)
		time.Sleep(5 * time.Millisecond)
	}
	if h == nil {
		t.Fatal("not subscribed")
	}

	h(&nats.Msg{Subject: testConfig.ActionSubject, Data: []byte("Power")})
	h(&nats.Msg{Subject: testConfig.ActionSubject, Data: []byte(`{"action":"Mode"}`), Reply: "_INBOX.1"})
	h(&nats.Msg{Subject: testConfig.ActionSubject, Data: []byte("Eject"), Reply: "_INBOX.2"})

	if want := []string{"Power", "Mode"}; !reflect.DeepEqual(r.routed, want) {
		t.Fatalf("routed %v, want %v", r.routed, want)
	}

	if len(conn.published) != 2 {
		t.Fatalf("published %d replies, want 2", len(conn.published))
	}
	var ok, bad Reply
	_ = json.Unmarshal(conn.published[0].data, &ok)
	_ = json.Unmarshal(conn.published[1].data, &bad)
	if conn.published[0].subject != "_INBOX.1" || ok.Status != "ok" {
		t.Errorf("first reply %s %+v", conn.published[0].subject, ok)
	}
	if conn.published[1].subject != "_INBOX.2" || bad.Status != "error" || bad.Error == "" {
		t.Errorf("second reply %s %+v", conn.published[1].subject, bad)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestObservePublishesRecord(t *testing.T) {
	conn := &fakeConn{}
	b := New(conn, &fakeRouter{}, testConfig, nil)

	id := uuid.New()
	b.Observe(dispatch.Result{
		Request: dispatch.Request{ID: id, Action: waveform.VolumeUp, Choice: waveform.Alternate, Pulses: []uint16{5, 6, 7}},
		Err:     errors.New("boom"),
	})

	if len(conn.published) != 1 || conn.published[0].subject != testConfig.ResultSubject {
		t.Fatalf("published %+v", conn.published)
	}
	var rec dispatch.Record
	if err := json.Unmarshal(conn.published[0].data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != id.String() || rec.Action != "Volume +" || rec.Choice != "alternate" ||
		rec.Pulses != 3 || rec.Status != dispatch.StatusFailed || rec.Error != "boom" {
		t.Fatalf("record %+v", rec)
	}
}
