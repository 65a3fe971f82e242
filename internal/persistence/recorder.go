package persistence

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/stadium-wave/internal/engine"
)

// Recorder moves session events from the tick goroutine into the ledger.
// The listener never blocks; when the buffer is full events are dropped
// and counted.
type Recorder struct {
	db      *DB
	logger  *slog.Logger
	ch      chan engine.Event
	dropped atomic.Int64
}

// NewRecorder buffers up to size events between flushes.
func NewRecorder(db *DB, size int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 1024
	}
	return &Recorder{db: db, logger: logger, ch: make(chan engine.Event, size)}
}

// Listener is passed to engine.Simulation.Subscribe.
func (r *Recorder) Listener() engine.Listener {
	return func(e engine.Event) {
		select {
		case r.ch <- e:
		default:
			r.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were lost to a full buffer.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run writes batches every interval until ctx is done, then drains.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var batch []engine.Event
	for {
		select {
		case e := <-r.ch:
			batch = append(batch, e)
		case <-ticker.C:
			batch = r.flush(batch)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.ch:
					batch = append(batch, e)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(batch []engine.Event) []engine.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := r.db.SaveEvents(batch); err != nil {
		r.logger.Error("event save failed", "events", len(batch), "error", err)
	}
	for _, e := range batch {
		if e.Wave == nil {
			continue
		}
		if err := r.db.SaveWave(*e.Wave); err != nil {
			r.logger.Error("wave save failed", "wave", e.Wave.ID, "error", err)
		}
	}
	return batch[:0]
}
