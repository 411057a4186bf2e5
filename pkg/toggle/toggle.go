// Package toggle tracks, per action, which of the two recorded waveforms
// goes out on the next press.
package toggle

import (
	"sync"

	"github.com/seagrayinc/irremote/pkg/waveform"
)

// Store is safe for concurrent use. The zero value is ready to use.
type Store struct {
	mu    sync.Mutex
	flags map[waveform.Action]waveform.Choice
}

func New() *Store {
	return &Store{}
}

// SelectAndAdvance returns the choice for this press and flips the stored
// flag for the next one. An action never seen before yields Primary.
func (s *Store) SelectAndAdvance(a waveform.Action) waveform.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags == nil {
		s.flags = make(map[waveform.Action]waveform.Choice)
	}
	c := s.flags[a]
	s.flags[a] = c.Next()
	return c
}

// Peek returns the choice the next press of a would get.
func (s *Store) Peek(a waveform.Action) waveform.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[a]
}

// Snapshot copies the next choice of every action pressed so far.
func (s *Store) Snapshot() map[waveform.Action]waveform.Choice {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[waveform.Action]waveform.Choice, len(s.flags))
	for a, c := range s.flags {
		out[a] = c
	}
	return out
}
