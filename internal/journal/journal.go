// Package journal keeps a sqlite record of what the widget relay did with
// each broadcast. Writes happen off the dispatch path.
package journal

import (
	"benwidget/internal/relay"
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBuffer      = 256
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

type Entry struct {
	ID           int64  `json:"id"`
	IntentID     string `json:"intentId"`
	Source       string `json:"source"`
	RawAction    string `json:"rawAction"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
	DurationUS   int64  `json:"durationUs"`
	DispatchedAt string `json:"dispatchedAt"`
}

// Writer records relay dispatches. ObserveDispatch never blocks: when the
// buffer is full the dispatch is dropped and counted.
type Writer struct {
	db      *sql.DB
	log     logrus.FieldLogger
	pending chan relay.Dispatch
	dropped atomic.Int64

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
	loopWG    sync.WaitGroup
}

func NewWriter(database *sql.DB, buffer int, logger logrus.FieldLogger) *Writer {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	writer := &Writer{
		db:      database,
		log:     logger.WithField("component", "dispatch-journal"),
		pending: make(chan relay.Dispatch, buffer),
	}

	writer.loopWG.Add(1)
	go writer.run()

	return writer
}

func (w *Writer) ObserveDispatch(dispatch relay.Dispatch) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.pending <- dispatch:
	default:
		w.dropped.Add(1)
	}
}

// Dropped reports how many dispatches were not journaled because the buffer
// was full.
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Close flushes buffered dispatches and stops the writer.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.closeMu.Lock()
		w.closed = true
		close(w.pending)
		w.closeMu.Unlock()

		w.loopWG.Wait()
	})

	return nil
}

func (w *Writer) run() {
	defer w.loopWG.Done()

	for dispatch := range w.pending {
		if err := insert(context.Background(), w.db, dispatch); err != nil {
			w.log.WithError(err).WithField("intent", dispatch.IntentID).Warn("journal write failed")
		}
	}
}

func insert(ctx context.Context, database *sql.DB, dispatch relay.Dispatch) error {
	at := dispatch.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := database.ExecContext(ctx, `
		INSERT INTO dispatch_journal(intent_id, source, raw_action, action, outcome, error, duration_us, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dispatch.IntentID,
		dispatch.Source,
		dispatch.RawAction,
		dispatch.Action.String(),
		string(dispatch.Outcome),
		dispatch.Error,
		dispatch.Duration.Microseconds(),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch %s: %w", dispatch.IntentID, err)
	}

	return nil
}

// Recent returns the newest entries first.
func Recent(ctx context.Context, database *sql.DB, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := database.QueryContext(ctx, `
		SELECT id, intent_id, source, raw_action, action, outcome, error, duration_us, dispatched_at
		FROM dispatch_journal
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.IntentID,
			&entry.Source,
			&entry.RawAction,
			&entry.Action,
			&entry.Outcome,
			&entry.Error,
			&entry.DurationUS,
			&entry.DispatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dispatch journal: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch journal: %w", err)
	}

	return entries, nil
}

// Summary counts journal entries per outcome.
func Summary(ctx context.Context, database *sql.DB) (map[string]int, error) {
	rows, err := database.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM dispatch_journal GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("summarize dispatch journal: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan dispatch summary: %w", err)
		}
		counts[outcome] = count
	}

	return counts, rows.Err()
}
