// Package router turns action names from any input surface into
// transmissions: lookup, toggle, dispatch.
package router

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/seagrayinc/irremote/pkg/toggle"
	"github.com/seagrayinc/irremote/pkg/waveform"
)

// Dispatcher is satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(action waveform.Action, choice waveform.Choice, pulses []uint16, frequencyHz uint16, repeats uint8) uuid.UUID
}

type Config struct {
	FrequencyHz uint16
	Repeats     uint8
}

type Router struct {
	table      *waveform.Table
	toggles    *toggle.Store
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
}

func New(table *waveform.Table, toggles *toggle.Store, d Dispatcher, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		table:      table,
		toggles:    toggles,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger,
	}
}

// Route resolves name and dispatches the next waveform for it. Unknown
// names are reported and return an error wrapping waveform.ErrUnknownAction;
// nothing is transmitted for them.
func (r *Router) Route(name string) error {
	a, err := waveform.ParseAction(name)
	if err != nil {
		r.logger.Warn("unknown action", slog.String("action", name))
		return err
	}
	return r.RouteAction(a)
}

// RouteAction is Route for an already parsed action. The toggle is advanced
// before the request is queued, so back-to-back presses always alternate.
func (r *Router) RouteAction(a waveform.Action) error {
	pair, err := r.table.Lookup(a)
	if err != nil {
		r.logger.Warn("unknown action", slog.String("action", a.String()))
		return err
	}

	choice := r.toggles.SelectAndAdvance(a)
	id := r.dispatcher.Dispatch(a, choice, pair.Select(choice), r.cfg.FrequencyHz, r.cfg.Repeats)

	r.logger.Debug("action routed",
		slog.String("action", a.String()),
		slog.String("choice", choice.String()),
		slog.String("id", id.String()))
	return nil
}

// Actions lists the names that Route accepts.
func (r *Router) Actions() []string {
	actions := r.table.Actions()
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}

// NextChoice reports which waveform the next press of name would send.
func (r *Router) NextChoice(name string) (waveform.Choice, error) {
	a, err := waveform.ParseAction(name)
	if err != nil {
		return 0, err
	}
	if _, err := r.table.Lookup(a); err != nil {
		return 0, err
	}
	return r.toggles.Peek(a), nil
}
