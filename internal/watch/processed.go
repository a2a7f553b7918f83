package watch

import "sync"

// Seen is a bounded set of already-handled row keys. When the cap is
// reached the oldest entry is evicted, so memory stays flat on long runs
// while recent duplicates are still caught.
type Seen struct {
	mu    sync.Mutex
	cap   int
	set   map[string]struct{}
	order []string
}

// NewSeen creates a seen-set with the given capacity.
func NewSeen(cap int) *Seen {
	if cap <= 0 {
		cap = 1000
	}
	return &Seen{
		cap: cap,
		set: make(map[string]struct{}, cap),
	}
}

// Has reports whether the key was already recorded.
func (s *Seen) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[key]
	return ok
}

// Add records a key, evicting the oldest entry when full.
func (s *Seen) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[key]; ok {
		return
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}
	s.set[key] = struct{}{}
	s.order = append(s.order, key)
}

// Len returns the number of recorded keys.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}
