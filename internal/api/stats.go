package api

import (
	"sync"

	"github.com/mojilabs/mojibridge/internal/bus"
)

// Counters is a snapshot of bridge activity since startup.
type Counters struct {
	Processed      uint64 `json:"processed"`
	Pending        uint64 `json:"pending"`
	Abandoned      uint64 `json:"abandoned"`
	Dispatched     uint64 `json:"dispatched"`
	DispatchFailed uint64 `json:"dispatchFailed"`
}

// Stats aggregates row and dispatch events off the bus into counters served
// by the health endpoint.
type Stats struct {
	mu       sync.Mutex
	counters Counters

	bus  *bus.Bus
	stop chan struct{}
	done chan struct{}
}

// NewStats creates a stats collector.
func NewStats(b *bus.Bus) *Stats {
	return &Stats{
		bus:  b,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start subscribes to the bus and begins counting.
func (s *Stats) Start() {
	rows, unsubRows := s.bus.Subscribe("row.", 64)
	dispatches, unsubDispatch := s.bus.Subscribe("dispatch.", 64)

	go func() {
		defer close(s.done)
		defer unsubRows()
		defer unsubDispatch()
		for {
			select {
			case <-s.stop:
				return
			case evt := <-rows:
				s.count(evt.Kind)
			case evt := <-dispatches:
				s.count(evt.Kind)
			}
		}
	}()
}

// Stop halts counting.
func (s *Stats) Stop() {
	close(s.stop)
	<-s.done
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *Stats) count(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "row.processed":
		s.counters.Processed++
	case "row.pending":
		s.counters.Pending++
	case "row.abandoned":
		s.counters.Abandoned++
	case "dispatch.sent":
		s.counters.Dispatched++
	case "dispatch.failed":
		s.counters.DispatchFailed++
	}
}
