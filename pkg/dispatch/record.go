package dispatch

import (
	"errors"
	"time"
)

// Result statuses.
const (
	StatusSent           = "sent"
	StatusFailed         = "failed"
	StatusDropped        = "dropped"
	StatusNotInitialized = "not_initialized"
)

// Status classifies the outcome.
func (r Result) Status() string {
	switch {
	case r.Err == nil:
		return StatusSent
	case errors.Is(r.Err, ErrQueueFull), errors.Is(r.Err, ErrClosed):
		return StatusDropped
	case errors.Is(r.Err, ErrNotInitialized):
		return StatusNotInitialized
	default:
		return StatusFailed
	}
}

// Record is the wire form of a Result for remote observers.
type Record struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Choice      string    `json:"choice"`
	Pulses      int       `json:"pulses"`
	FrequencyHz uint16    `json:"frequency_hz"`
	Repeats     uint8     `json:"repeats"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ElapsedMS   float64   `json:"elapsed_ms"`
	QueueMS     float64   `json:"queue_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

func (r Result) Record() Record {
	rec := Record{
		ID:          r.ID.String(),
		Action:      r.Action.String(),
		Choice:      r.Choice.String(),
		Pulses:      len(r.Pulses),
		FrequencyHz: r.FrequencyHz,
		Repeats:     r.Repeats,
		Status:      r.Status(),
		ElapsedMS:   float64(r.Elapsed) / float64(time.Millisecond),
		QueueMS:     float64(r.QueueDelay) / float64(time.Millisecond),
		CompletedAt: r.CompletedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
