package notify

import (
	"context"
	"log"
	"time"

	"github.com/dialtone-ai/greenroom/internal/events"
	"gorm.io/gorm"
)

// DefaultPollInterval is how often the watcher tails the event log.
const DefaultPollInterval = 15 * time.Second

// Watcher tails the engine event log and pushes new events to the
// configured adapters. It keeps a high-water mark so each event is
// delivered at most once per process lifetime; events logged while the
// watcher is down are skipped, not replayed.
type Watcher struct {
	db       *gorm.DB
	adapters []Adapter
	interval time.Duration
	lastID   uint
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	PollInterval time.Duration // defaults to DefaultPollInterval
}

// NewWatcher creates a watcher over the given adapters.
func NewWatcher(db *gorm.DB, adapters []Adapter, opts WatcherOpts) *Watcher {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{db: db, adapters: adapters, interval: interval}
}

// Run polls until the context is cancelled. The first poll establishes
// the high-water mark without delivering, so a fresh watcher doesn't
// spray historical events into chat.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.prime(); err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				log.Printf("notify: poll: %v", err)
			}
		}
	}
}

// prime sets the high-water mark to the newest existing event.
func (w *Watcher) prime() error {
	recent, err := events.Recent(w.db, "", 1)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		w.lastID = recent[0].ID
	}
	return nil
}

// Poll delivers all events logged since the last poll. Exported so the
// CLI can trigger a one-shot delivery pass.
func (w *Watcher) Poll(ctx context.Context) error {
	evs, err := events.Since(w.db, w.lastID, 100)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if err := Fanout(ctx, w.adapters, FormatEvent(ev)); err != nil {
			log.Printf("notify: deliver event %d: %v", ev.ID, err)
		}
		w.lastID = ev.ID
	}
	return nil
}
