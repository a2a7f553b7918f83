// Package watch runs the ingestion loop: poll the message store for rows
// past the cursor, classify them, dispatch events downstream, and carry
// rows with unmaterialized text in a bounded retry ledger.
package watch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mojilabs/mojibridge/internal/bus"
	"github.com/mojilabs/mojibridge/internal/classify"
	"github.com/mojilabs/mojibridge/internal/dispatch"
	"github.com/mojilabs/mojibridge/internal/status"
	"github.com/mojilabs/mojibridge/internal/store"
	"go.uber.org/zap"
)

// Source is the read side of the message store.
type Source interface {
	MaxRowID(chatRowID int64) (int64, error)
	MessagesAfter(chatRowID, after int64) ([]store.MessageRow, error)
	MessageByRowID(rowID int64) (*store.MessageRow, error)
}

// Dispatcher delivers one event downstream.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt dispatch.Event) error
}

// TextFinder recovers text for rows whose store column never materializes.
type TextFinder interface {
	FindText(ctx context.Context, chat store.Chat, row store.MessageRow) (string, error)
}

// Options configures the watcher loop.
type Options struct {
	PollInterval time.Duration
	// RewindRows re-reads this many rows behind the newest on startup.
	// Zero means start strictly at the newest row.
	RewindRows   int64
	MaxAttempts  int
	RetryWindow  time.Duration
	ProcessedCap int
}

// Watcher polls one chat and turns its new rows into dispatched events.
type Watcher struct {
	chat       store.Chat
	source     Source
	dispatcher Dispatcher
	finder     TextFinder
	classifier *classify.Classifier
	machine    *status.Machine
	bus        *bus.Bus
	logger     *zap.Logger
	opts       Options

	cursor *Cursor
	ledger *Ledger
	seen   *Seen

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher with its cursor initialized from the store's newest
// row, minus the configured rewind.
func New(chat store.Chat, source Source, d Dispatcher, f TextFinder, cls *classify.Classifier, m *status.Machine, b *bus.Bus, logger *zap.Logger, opts Options) (*Watcher, error) {
	max, err := source.MaxRowID(chat.RowID)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		chat:       chat,
		source:     source,
		dispatcher: d,
		finder:     f,
		classifier: cls,
		machine:    m,
		bus:        b,
		logger:     logger,
		opts:       opts,
		cursor:     NewCursor(max - opts.RewindRows),
		ledger:     NewLedger(opts.MaxAttempts, opts.RetryWindow, nil),
		seen:       NewSeen(opts.ProcessedCap),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start launches the poll loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop halts the loop and waits for the current cycle to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Cursor returns the current cursor position.
func (w *Watcher) Cursor() int64 {
	return w.cursor.Current()
}

// PendingRetries returns the number of rows awaiting materialization.
func (w *Watcher) PendingRetries() int {
	return w.ledger.Len()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle runs one poll: scan new rows, then re-check the ledger. A store
// query failure stalls the cursor and degrades the bridge until a cycle
// succeeds again.
func (w *Watcher) cycle(ctx context.Context) {
	rows, err := w.source.MessagesAfter(w.chat.RowID, w.cursor.Current())
	if err != nil {
		w.logger.Error("store query failed", zap.Error(err))
		_ = w.machine.Transition(status.Degraded)
		return
	}
	_ = w.machine.Transition(status.Watching)

	for _, row := range rows {
		w.handleRow(ctx, row)
	}
	w.recheckLedger(ctx)
}

func (w *Watcher) handleRow(ctx context.Context, row store.MessageRow) {
	defer w.cursor.Advance(row.RowID)

	if w.seen.Has(row.GUID) {
		return
	}
	if strings.TrimSpace(row.Text) == "" {
		w.track(row.RowID)
		return
	}
	w.process(ctx, row, row.Text)
}

// track enters a row into the retry ledger. The cursor still advances past
// it; re-checks go through MessageByRowID instead of the scan.
func (w *Watcher) track(rowID int64) {
	added, evicted := w.ledger.Observe(rowID)
	if evicted != 0 {
		w.logger.Warn("retry ledger full, dropping oldest row", zap.Int64("row_id", evicted))
		w.abandon(evicted, "")
	}
	if added {
		w.logger.Debug("row pending materialization", zap.Int64("row_id", rowID))
		w.publish("row.pending", rowID)
	}
}

func (w *Watcher) recheckLedger(ctx context.Context) {
	for _, id := range w.ledger.Pending() {
		row, err := w.source.MessageByRowID(id)
		if err != nil {
			w.logger.Warn("ledger re-check failed", zap.Int64("row_id", id), zap.Error(err))
			continue
		}
		if row == nil {
			w.logger.Warn("ledger row vanished from store", zap.Int64("row_id", id))
			w.ledger.Resolve(id)
			continue
		}

		if text := strings.TrimSpace(row.Text); text != "" {
			w.resolve(ctx, *row, text)
			continue
		}

		// The store never fills in text for self-authored rows, so for
		// those one automation lookup is attempted before giving up.
		if row.FromMe && w.finder != nil && w.ledger.MarkFallback(id) {
			if text, err := w.finder.FindText(ctx, w.chat, *row); err == nil {
				w.resolve(ctx, *row, text)
				continue
			} else {
				w.logger.Warn("automation fallback failed", zap.Int64("row_id", id), zap.Error(err))
			}
		}

		if abandoned, attempts := w.ledger.Fail(id); abandoned {
			w.logger.Warn("abandoning row, text never materialized",
				zap.Int64("row_id", id),
				zap.Int("attempts", attempts))
			w.abandon(id, row.GUID)
		}
	}
}

// resolve handles a ledger row whose text finally arrived.
func (w *Watcher) resolve(ctx context.Context, row store.MessageRow, text string) {
	w.ledger.Resolve(row.RowID)
	w.process(ctx, row, text)
	w.cursor.Advance(row.RowID)
}

func (w *Watcher) abandon(rowID int64, guid string) {
	if guid != "" {
		w.seen.Add(guid)
	}
	w.cursor.Advance(rowID)
	w.publish("row.abandoned", rowID)
}

// process classifies one row and dispatches its event. Dispatch failures
// are logged and dropped; the row still counts as handled.
func (w *Watcher) process(ctx context.Context, row store.MessageRow, text string) {
	intent := w.classifier.Classify(text)

	userID := row.SenderID
	if userID == "" && row.FromMe {
		userID = "me"
	}
	evt := dispatch.Event{
		EventID: uuid.NewString(),
		ChatID:  w.chat.GUID,
		UserID:  userID,
		Text:    text,
		TS:      store.AppleTime(row.Date),
		FromMe:  row.FromMe,
	}
	if intent.Kind != classify.KindPlain {
		evt.Intent = intent
	}

	w.seen.Add(row.GUID)
	w.publish("row.processed", row.RowID)

	if err := w.dispatcher.Dispatch(ctx, evt); err != nil {
		w.logger.Warn("dispatch failed, dropping event",
			zap.Int64("row_id", row.RowID),
			zap.String("kind", string(intent.Kind)),
			zap.Error(err))
		w.publish("dispatch.failed", evt.EventID)
		return
	}
	w.publish("dispatch.sent", evt.EventID)
}

func (w *Watcher) publish(kind string, payload any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
