// Package bus connects the action router to NATS: action names arrive on
// one subject and transmission results are published on another.
package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/seagrayinc/irremote/pkg/dispatch"
)

var ErrEmptyPayload = errors.New("empty action payload")

// Conn is the subset of *nats.Conn used here.
type Conn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
}

// Router receives action names.
type Router interface {
	Route(name string) error
}

type Config struct {
	ActionSubject string
	ResultSubject string
}

// Reply is published to the request's reply subject, if any.
type Reply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Bus struct {
	conn   Conn
	router Router
	cfg    Config
	logger *slog.Logger
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("irremote"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS error", "subject", subject, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func New(conn Conn, r Router, cfg Config, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{conn: conn, router: r, cfg: cfg, logger: logger}
}

// Run subscribes to the action subject until ctx is canceled.
func (b *Bus) Run(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.cfg.ActionSubject, b.handleAction)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.cfg.ActionSubject, err)
	}
	b.logger.Info("NATS subscriber started", "subject", b.cfg.ActionSubject)

	<-ctx.Done()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (b *Bus) handleAction(msg *nats.Msg) {
	b.logger.Debug("NATS action received", "subject", msg.Subject, "size", len(msg.Data))

	reply := Reply{Status: "ok"}
	name, err := parseAction(msg.Data)
	if err == nil {
		err = b.router.Route(name)
	}
	if err != nil {
		b.logger.Debug("NATS action rejected", "error", err)
		reply = Reply{Status: "error", Error: err.Error()}
	}

	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(reply)
	if err := b.conn.Publish(msg.Reply, data); err != nil {
		b.logger.Error("NATS reply failed", "error", err)
	}
}

// parseAction accepts either a bare action name or {"action": name}.
func parseAction(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if data[0] != '{' {
		return string(data), nil
	}
	var m struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse action payload: %w", err)
	}
	if m.Action == "" {
		return "", ErrEmptyPayload
	}
	return m.Action, nil
}

// Observe publishes the result on the result subject.
func (b *Bus) Observe(r dispatch.Result) {
	data, err := json.Marshal(r.Record())
	if err != nil {
		b.logger.Error("NATS marshal result", "error", err)
		return
	}
	if err := b.conn.Publish(b.cfg.ResultSubject, data); err != nil {
		b.logger.Warn("NATS publish result failed", "subject", b.cfg.ResultSubject, "error", err)
	}
}
