package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mojilabs/mojibridge/internal/bus"
	"github.com/mojilabs/mojibridge/internal/classify"
	"github.com/mojilabs/mojibridge/internal/dispatch"
	"github.com/mojilabs/mojibridge/internal/status"
	"github.com/mojilabs/mojibridge/internal/store"
	"go.uber.org/zap"
)

type fakeSource struct {
	mu   sync.Mutex
	rows map[int64]store.MessageRow
	err  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{rows: make(map[int64]store.MessageRow)}
}

func (s *fakeSource) add(row store.MessageRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.GUID == "" {
		row.GUID = fmt.Sprintf("guid-%d", row.RowID)
	}
	s.rows[row.RowID] = row
}

func (s *fakeSource) setText(rowID int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[rowID]
	row.Text = text
	s.rows[rowID] = row
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) MaxRowID(int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	var max int64
	for id := range s.rows {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (s *fakeSource) MessagesAfter(_, after int64) ([]store.MessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []store.MessageRow
	for id, row := range s.rows {
		if id > after {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	return out, nil
}

func (s *fakeSource) MessageByRowID(rowID int64) (*store.MessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	row, ok := s.rows[rowID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []dispatch.Event
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, evt dispatch.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return d.err
}

func (d *fakeDispatcher) sent() []dispatch.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]dispatch.Event, len(d.events))
	copy(out, d.events)
	return out
}

type fakeFinder struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeFinder) FindText(context.Context, store.Chat, store.MessageRow) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func watchingMachine(t *testing.T) *status.Machine {
	t.Helper()
	m := status.NewMachine(nil)
	for _, s := range []status.State{status.Resolving, status.Watching} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	return m
}

func testWatcher(t *testing.T, src *fakeSource, d *fakeDispatcher, f TextFinder) *Watcher {
	t.Helper()
	w, err := New(store.Chat{RowID: 1, GUID: "chat-guid"}, src, d, f,
		classify.New(), watchingMachine(t), bus.New(), zap.NewNop(), Options{
			PollInterval: time.Second,
			MaxAttempts:  10,
			RetryWindow:  20 * time.Second,
			ProcessedCap: 1000,
		})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func TestWatcherDirectCommand(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)

	src.add(store.MessageRow{RowID: 10, Text: "moji meme: finals stress", SenderID: "+1555"})
	w.cycle(context.Background())

	events := d.sent()
	if len(events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(events))
	}
	evt := events[0]
	if evt.Intent == nil || evt.Intent.Kind != classify.KindMeme {
		t.Fatalf("intent = %+v, want meme", evt.Intent)
	}
	if evt.Intent.Topic != "finals stress" {
		t.Errorf("topic = %q, want %q", evt.Intent.Topic, "finals stress")
	}
	if evt.ChatID != "chat-guid" || evt.UserID != "+1555" {
		t.Errorf("identity = (%q, %q), want chat and sender", evt.ChatID, evt.UserID)
	}
	if w.Cursor() != 10 {
		t.Errorf("Cursor() = %d, want 10", w.Cursor())
	}
	if w.PendingRetries() != 0 {
		t.Errorf("PendingRetries() = %d, want 0", w.PendingRetries())
	}
}

func TestWatcherLateMaterialization(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 42, Text: "", SenderID: "+1555"})
	w.cycle(ctx)

	if len(d.sent()) != 0 {
		t.Fatal("empty row should not dispatch")
	}
	if w.PendingRetries() != 1 {
		t.Fatalf("PendingRetries() = %d, want 1", w.PendingRetries())
	}
	// The cursor moves past the pending row; the ledger owns it now.
	if w.Cursor() != 42 {
		t.Fatalf("Cursor() = %d, want 42", w.Cursor())
	}

	// Two more cycles with no text.
	w.cycle(ctx)
	w.cycle(ctx)
	if len(d.sent()) != 0 {
		t.Fatal("still-empty row should not dispatch")
	}

	// Text materializes; the third re-check picks it up.
	src.setText(42, "@moji sticker: cute cat")
	w.cycle(ctx)

	events := d.sent()
	if len(events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(events))
	}
	evt := events[0]
	if evt.Intent == nil || evt.Intent.Kind != classify.KindSticker {
		t.Fatalf("intent = %+v, want sticker", evt.Intent)
	}
	if evt.Intent.Prompt != "cute cat" || evt.Intent.Style != "cute" {
		t.Errorf("sticker params = (%q, %q), want (cute cat, cute)", evt.Intent.Prompt, evt.Intent.Style)
	}
	if w.PendingRetries() != 0 {
		t.Errorf("PendingRetries() = %d, want 0 after resolution", w.PendingRetries())
	}
	if w.Cursor() < 42 {
		t.Errorf("Cursor() = %d, must not regress below 42", w.Cursor())
	}
}

func TestWatcherAtMostOncePerRow(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 5, Text: "hello", SenderID: "+1555"})
	w.cycle(ctx)

	// Simulate a rewind re-reading the same row.
	w.cursor = NewCursor(0)
	w.cycle(ctx)

	if got := len(d.sent()); got != 1 {
		t.Errorf("dispatched %d events for one row, want 1", got)
	}
}

func TestWatcherAbandonByAttempts(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)
	w.ledger = NewLedger(3, time.Hour, nil)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 7, Text: "", SenderID: "+1555"})
	for i := 0; i < 4; i++ {
		w.cycle(ctx)
	}

	if len(d.sent()) != 0 {
		t.Error("abandoned row must not dispatch")
	}
	if w.PendingRetries() != 0 {
		t.Errorf("PendingRetries() = %d, want 0 after abandonment", w.PendingRetries())
	}
	if w.Cursor() != 7 {
		t.Errorf("Cursor() = %d, want 7", w.Cursor())
	}
	if !w.seen.Has("guid-7") {
		t.Error("abandoned row not recorded as handled")
	}
}

func TestWatcherAbandonByWindow(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)

	now := time.Now()
	w.ledger = NewLedger(100, 20*time.Second, func() time.Time { return now })
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 8, Text: "", SenderID: "+1555"})
	w.cycle(ctx)
	if w.PendingRetries() != 1 {
		t.Fatalf("PendingRetries() = %d, want 1", w.PendingRetries())
	}

	now = now.Add(25 * time.Second)
	w.cycle(ctx)

	if w.PendingRetries() != 0 {
		t.Errorf("PendingRetries() = %d, want 0 once window elapsed", w.PendingRetries())
	}
	if len(d.sent()) != 0 {
		t.Error("abandoned row must not dispatch")
	}
}

func TestWatcherQueryFailureStallsCursor(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w := testWatcher(t, src, d, nil)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 3, Text: "hello", SenderID: "+1555"})
	before := w.Cursor()
	src.setErr(errors.New("database is locked"))
	w.cycle(ctx)

	if w.machine.Current() != status.Degraded {
		t.Errorf("state = %s, want DEGRADED", w.machine.Current())
	}
	if w.Cursor() != before {
		t.Errorf("Cursor() = %d, must stall at %d during failure", w.Cursor(), before)
	}
	if len(d.sent()) != 0 {
		t.Error("no events should dispatch during failure")
	}

	// Recovery on the next successful cycle.
	src.setErr(nil)
	w.cycle(ctx)
	if w.machine.Current() != status.Watching {
		t.Errorf("state = %s, want WATCHING after recovery", w.machine.Current())
	}
	if len(d.sent()) != 1 {
		t.Errorf("dispatched %d events after recovery, want 1", len(d.sent()))
	}
}

func TestWatcherDispatchFailureStillAdvances(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{err: errors.New("connection refused")}
	w := testWatcher(t, src, d, nil)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 4, Text: "hello", SenderID: "+1555"})
	w.cycle(ctx)

	if w.Cursor() != 4 {
		t.Errorf("Cursor() = %d, want 4 despite dispatch failure", w.Cursor())
	}
	if !w.seen.Has("guid-4") {
		t.Error("row not marked handled despite dispatch failure")
	}

	// The event is dropped, never retried.
	w.cycle(ctx)
	if got := len(d.sent()); got != 1 {
		t.Errorf("dispatch attempted %d times, want 1", got)
	}
}

func TestWatcherFallbackForOwnRows(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	f := &fakeFinder{text: "@moji status"}
	w := testWatcher(t, src, d, f)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 9, Text: "", FromMe: true})
	w.cycle(ctx)

	events := d.sent()
	if len(events) != 1 {
		t.Fatalf("dispatched %d events, want 1 from fallback text", len(events))
	}
	if events[0].Intent == nil || events[0].Intent.Kind != classify.KindStatus {
		t.Fatalf("intent = %+v, want status", events[0].Intent)
	}
	if !events[0].FromMe || events[0].UserID != "me" {
		t.Errorf("event = (FromMe=%v, UserID=%q), want self-authored", events[0].FromMe, events[0].UserID)
	}
	if f.calls != 1 {
		t.Errorf("fallback ran %d times, want 1", f.calls)
	}
	if w.PendingRetries() != 0 {
		t.Errorf("PendingRetries() = %d, want 0", w.PendingRetries())
	}
}

func TestWatcherFallbackRunsOnce(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	f := &fakeFinder{err: errors.New("automation unavailable")}
	w := testWatcher(t, src, d, f)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 9, Text: "", FromMe: true})
	w.cycle(ctx)
	w.cycle(ctx)
	w.cycle(ctx)

	if f.calls != 1 {
		t.Errorf("fallback ran %d times, want exactly 1 per row", f.calls)
	}
}

func TestWatcherSkipsOtherPartyFallback(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	f := &fakeFinder{text: "should not be used"}
	w := testWatcher(t, src, d, f)
	ctx := context.Background()

	src.add(store.MessageRow{RowID: 11, Text: "", FromMe: false, SenderID: "+1555"})
	w.cycle(ctx)
	w.cycle(ctx)

	if f.calls != 0 {
		t.Errorf("fallback ran %d times for a received row, want 0", f.calls)
	}
	if w.PendingRetries() != 1 {
		t.Errorf("PendingRetries() = %d, want row still tracked", w.PendingRetries())
	}
}

func TestWatcherStartStop(t *testing.T) {
	src := newFakeSource()
	d := &fakeDispatcher{}
	w, err := New(store.Chat{RowID: 1, GUID: "chat-guid"}, src, d, nil,
		classify.New(), watchingMachine(t), bus.New(), zap.NewNop(), Options{
			PollInterval: 10 * time.Millisecond,
			MaxAttempts:  10,
			RetryWindow:  20 * time.Second,
			ProcessedCap: 1000,
		})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src.add(store.MessageRow{RowID: 2, Text: "hello", SenderID: "+1555"})
	w.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for len(d.sent()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the loop to dispatch")
		case <-time.After(5 * time.Millisecond):
		}
	}
	w.Stop()
}

func TestWatcherRewindInit(t *testing.T) {
	src := newFakeSource()
	for i := int64(1); i <= 50; i++ {
		src.add(store.MessageRow{RowID: i, Text: "old", SenderID: "+1555"})
	}
	d := &fakeDispatcher{}
	w, err := New(store.Chat{RowID: 1, GUID: "chat-guid"}, src, d, nil,
		classify.New(), watchingMachine(t), bus.New(), zap.NewNop(), Options{
			PollInterval: time.Second,
			RewindRows:   5,
			MaxAttempts:  10,
			RetryWindow:  20 * time.Second,
			ProcessedCap: 1000,
		})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if w.Cursor() != 45 {
		t.Fatalf("Cursor() = %d, want 45 with rewind 5 from max 50", w.Cursor())
	}
	w.cycle(context.Background())
	if got := len(d.sent()); got != 5 {
		t.Errorf("dispatched %d events, want the 5 rewound rows", got)
	}
}
