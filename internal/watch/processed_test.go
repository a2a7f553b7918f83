package watch

import (
	"fmt"
	"testing"
)

func TestSeenAddHas(t *testing.T) {
	s := NewSeen(10)
	if s.Has("g1") {
		t.Error("Has() = true for unknown key")
	}
	s.Add("g1")
	if !s.Has("g1") {
		t.Error("Has() = false after Add")
	}
	s.Add("g1")
	if s.Len() != 1 {
		t.Errorf("Len() = %d after duplicate Add, want 1", s.Len())
	}
}

func TestSeenEvictsOldest(t *testing.T) {
	s := NewSeen(3)
	for i := 0; i < 4; i++ {
		s.Add(fmt.Sprintf("g%d", i))
	}
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.Has("g0") {
		t.Error("oldest key survived eviction")
	}
	for i := 1; i < 4; i++ {
		if !s.Has(fmt.Sprintf("g%d", i)) {
			t.Errorf("recent key g%d was evicted", i)
		}
	}
}
