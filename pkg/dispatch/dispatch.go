// Package dispatch moves IR transmissions off the caller's goroutine.
//
// Requests are queued into a bounded buffer and drained by a single worker,
// which is the only goroutine that touches the hardware. Submission never
// blocks; outcomes are reported to observers rather than returned.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seagrayinc/irremote/pkg/session"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

const (
	DefaultFrequencyHz   uint16 = 2300
	DefaultQueueSize            = 16
	DefaultSlowThreshold        = 250 * time.Millisecond
)

var (
	ErrQueueFull      = errors.New("transmit queue full")
	ErrClosed         = errors.New("dispatcher closed")
	ErrEmptySequence  = errors.New("empty pulse sequence")
	ErrNotInitialized = session.ErrNotInitialized
)

// Transmitter is the blocking hardware primitive, typically a *session.Session.
type Transmitter interface {
	TransmitRaw(pulses []uint16, frequencyHz uint16, repeats uint8) error
	IsOpen() bool
}

// Request is a snapshot of one transmission. Pulses is owned by the request.
type Request struct {
	ID          uuid.UUID
	Action      waveform.Action
	Choice      waveform.Choice
	Pulses      []uint16
	FrequencyHz uint16
	Repeats     uint8
	SubmittedAt time.Time
}

// Result is reported once per request, whether it was sent, failed or dropped.
type Result struct {
	Request
	Err         error
	Elapsed     time.Duration // time spent in the hardware call
	QueueDelay  time.Duration // submission to start of the hardware call
	CompletedAt time.Time
}

func (r Result) OK() bool { return r.Err == nil }

// Observer receives results from the worker goroutine. Implementations
// must not block for long.
type Observer interface {
	Observe(Result)
}

type ObserverFunc func(Result)

func (f ObserverFunc) Observe(r Result) { f(r) }

type options struct {
	logger        *slog.Logger
	queueSize     int
	slowThreshold time.Duration
	observers     []Observer
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithSlowThreshold sets the hardware call duration above which a
// transmission is logged as slow. Zero disables the check. The call
// itself is never interrupted.
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) { o.slowThreshold = d }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

type Dispatcher struct {
	tx     Transmitter
	logger *slog.Logger
	opts   options
	stats  *Stats

	mu     sync.RWMutex
	closed bool
	queue  chan Request

	obsMu     sync.RWMutex
	observers []Observer

	startOnce sync.Once
	done      chan struct{}
}

func New(tx Transmitter, opts ...Option) *Dispatcher {
	o := options{
		logger:        slog.Default(),
		queueSize:     DefaultQueueSize,
		slowThreshold: DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize <= 0 {
		o.queueSize = DefaultQueueSize
	}

	d := &Dispatcher{
		tx:     tx,
		logger: o.logger,
		opts:   o,
		stats:  &Stats{},
		queue:  make(chan Request, o.queueSize),
		done:   make(chan struct{}),
	}
	d.observers = append([]Observer{d.stats}, o.observers...)
	return d
}

// AddObserver registers obs for results completed from now on.
func (d *Dispatcher) AddObserver(obs Observer) {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	d.observers = append(d.observers, obs)
}

// Start launches the worker. When ctx is canceled the dispatcher stops
// accepting requests, finishes everything already queued and exits.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Wait blocks until the worker has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()

			for {
				select {
				case req := <-d.queue:
					d.transmit(req)
				default:
					d.logger.Debug("dispatcher stopped")
					return
				}
			}

		case req := <-d.queue:
			d.transmit(req)
		}
	}
}

// Dispatch queues a transmission and returns immediately with the request
// ID. pulses is copied. Failures, including a closed device or a full
// queue, are reported to observers and never to the caller.
func (d *Dispatcher) Dispatch(action waveform.Action, choice waveform.Choice, pulses []uint16, frequencyHz uint16, repeats uint8) uuid.UUID {
	req := Request{
		ID:          uuid.New(),
		Action:      action,
		Choice:      choice,
		Pulses:      slices.Clone(pulses),
		FrequencyHz: frequencyHz,
		Repeats:     repeats,
		SubmittedAt: time.Now(),
	}

	switch {
	case len(req.Pulses) == 0:
		d.report(Result{Request: req, Err: ErrEmptySequence, CompletedAt: time.Now()})
		return req.ID
	case !d.tx.IsOpen():
		d.report(Result{Request: req, Err: ErrNotInitialized, CompletedAt: time.Now()})
		return req.ID
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.report(Result{Request: req, Err: ErrClosed, CompletedAt: time.Now()})
		return req.ID
	}

	select {
	case d.queue <- req:
		d.logger.Debug("transmission queued",
			slog.String("id", req.ID.String()),
			slog.String("action", action.String()),
			slog.String("choice", choice.String()))
	default:
		d.report(Result{Request: req, Err: ErrQueueFull, CompletedAt: time.Now()})
	}
	return req.ID
}

func (d *Dispatcher) transmit(req Request) {
	start := time.Now()
	err := d.tx.TransmitRaw(req.Pulses, req.FrequencyHz, req.Repeats)
	end := time.Now()

	d.report(Result{
		Request:     req,
		Err:         err,
		Elapsed:     end.Sub(start),
		QueueDelay:  start.Sub(req.SubmittedAt),
		CompletedAt: end,
	})
}

func (d *Dispatcher) report(r Result) {
	attrs := []any{
		slog.String("id", r.ID.String()),
		slog.String("action", r.Action.String()),
		slog.String("choice", r.Choice.String()),
		slog.Float64("elapsed_ms", float64(r.Elapsed.Microseconds())/1000),
		slog.Float64("queue_ms", float64(r.QueueDelay.Microseconds())/1000),
	}

	switch {
	case r.Err != nil:
		d.logger.Error("IR transmission failed", append(attrs, slog.Any("error", r.Err))...)
	case d.opts.slowThreshold > 0 && r.Elapsed > d.opts.slowThreshold:
		d.logger.Warn("IR transmission slow", attrs...)
	default:
		d.logger.Info("IR code transmitted", attrs...)
	}

	d.obsMu.RLock()
	defer d.obsMu.RUnlock()
	for _, obs := range d.observers {
		obs.Observe(r)
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}
