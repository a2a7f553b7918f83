package watch

import (
	"sync"
	"time"
)

// ledgerCap bounds the number of rows awaiting materialization at once.
// Beyond it the oldest entry is evicted, which counts as abandonment.
const ledgerCap = 256

type ledgerEntry struct {
	rowID         int64
	firstSeen     time.Time
	attempts      int
	fallbackTried bool
}

// Ledger tracks rows observed with empty text so they can be re-checked on
// later cycles. An entry is abandoned after maxAttempts re-checks or once
// its age exceeds the window, whichever comes first.
type Ledger struct {
	mu          sync.Mutex
	entries     map[int64]*ledgerEntry
	order       []int64
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewLedger creates a retry ledger.
func NewLedger(maxAttempts int, window time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		entries:     make(map[int64]*ledgerEntry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
	}
}

// Observe adds a row to the ledger. Returns true if the row is new, false
// if it was already tracked. When the ledger is full the oldest entry is
// evicted and returned so the caller can record the abandonment.
func (l *Ledger) Observe(rowID int64) (added bool, evicted int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[rowID]; ok {
		return false, 0
	}
	if len(l.order) >= ledgerCap {
		evicted = l.order[0]
		l.order = l.order[1:]
		delete(l.entries, evicted)
	}
	l.entries[rowID] = &ledgerEntry{rowID: rowID, firstSeen: l.now()}
	l.order = append(l.order, rowID)
	return true, evicted
}

// Pending returns the tracked row ids in insertion order.
func (l *Ledger) Pending() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]int64, len(l.order))
	copy(out, l.order)
	return out
}

// MarkFallback flips the one-shot fallback flag for a row. Returns true the
// first time, false on every later call, so the automation lookup runs at
// most once per row.
func (l *Ledger) MarkFallback(rowID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[rowID]
	if !ok || e.fallbackTried {
		return false
	}
	e.fallbackTried = true
	return true
}

// Fail records a failed re-check. Returns whether the entry crossed either
// retry bound and was removed, plus the attempt count.
func (l *Ledger) Fail(rowID int64) (abandoned bool, attempts int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[rowID]
	if !ok {
		return false, 0
	}
	e.attempts++
	if e.attempts >= l.maxAttempts || l.now().Sub(e.firstSeen) >= l.window {
		l.remove(rowID)
		return true, e.attempts
	}
	return false, e.attempts
}

// Resolve removes a row whose text materialized.
func (l *Ledger) Resolve(rowID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remove(rowID)
}

// Len returns the number of tracked rows.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) remove(rowID int64) {
	if _, ok := l.entries[rowID]; !ok {
		return
	}
	delete(l.entries, rowID)
	for i, id := range l.order {
		if id == rowID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
