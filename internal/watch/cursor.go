package watch

import "sync"

// Cursor tracks the highest message row id that has been handled. It only
// moves forward: a row entering the retry ledger still advances the cursor,
// and late materialization never moves it back.
type Cursor struct {
	mu  sync.Mutex
	pos int64
}

// NewCursor creates a cursor at the given position.
func NewCursor(pos int64) *Cursor {
	if pos < 0 {
		pos = 0
	}
	return &Cursor{pos: pos}
}

// Current returns the cursor position.
func (c *Cursor) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Advance moves the cursor to the given row id. Moving backward is a no-op.
func (c *Cursor) Advance(to int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to > c.pos {
		c.pos = to
	}
}
