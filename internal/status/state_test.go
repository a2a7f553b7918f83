package status

import (
	"testing"

	"github.com/mojilabs/mojibridge/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Resolving},
		{Booting, Error},
		{Resolving, Watching},
		{Resolving, Error},
		{Watching, Degraded},
		{Degraded, Watching},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Watching); err == nil {
		t.Error("Transition(BOOTING -> WATCHING) should fail")
	}
}

func TestSelfTransitionIsNoOp(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("bridge.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Booting); err != nil {
		t.Errorf("self transition error = %v", err)
	}

	select {
	case evt := <-ch:
		t.Errorf("self transition published event: %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("bridge.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Resolving); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "bridge.status_changed" {
		t.Errorf("event kind = %q, want bridge.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != Resolving {
		t.Errorf("change = %v -> %v, want BOOTING -> RESOLVING", change.From, change.To)
	}
}

// walkTo drives the machine through a valid path to the given state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:   {},
		Resolving: {Resolving},
		Watching:  {Resolving, Watching},
		Degraded:  {Resolving, Watching, Degraded},
		Error:     {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo %s: %v", target, err)
		}
	}
}
