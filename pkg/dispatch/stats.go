package dispatch

import (
	"sync"
	"time"
)

// Stats counts results. It is registered on every dispatcher.
type Stats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

type StatsSnapshot struct {
	Sent           uint64        `json:"sent"`
	Failed         uint64        `json:"failed"`
	Dropped        uint64        `json:"dropped"`
	NotInitialized uint64        `json:"not_initialized"`
	LastElapsed    time.Duration `json:"last_elapsed_ns"`
	MaxElapsed     time.Duration `json:"max_elapsed_ns"`
	LastAt         time.Time     `json:"last_at"`
}

func (s *Stats) Observe(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Status() {
	case StatusSent:
		s.snap.Sent++
	case StatusDropped:
		s.snap.Dropped++
	case StatusNotInitialized:
		s.snap.NotInitialized++
	default:
		s.snap.Failed++
	}

	if r.Elapsed > 0 {
		s.snap.LastElapsed = r.Elapsed
		if r.Elapsed > s.snap.MaxElapsed {
			s.snap.MaxElapsed = r.Elapsed
		}
	}
	s.snap.LastAt = r.CompletedAt
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
