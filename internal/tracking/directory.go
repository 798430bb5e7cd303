package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"rotaviz.dev/rotaviz/internal/store"
)

// Directory keeps the latest device summaries in memory. It refreshes by
// re-running the aggregator over a full store read, both on demand and
// whenever the change feed reports that the locations collection moved.
type Directory struct {
	logger *slog.Logger
	store  store.RecordStore

	mu        sync.RWMutex
	summaries []DeviceSummary
	loaded    bool

	// gen orders refreshes so that a slow full read finishing after a
	// newer one started cannot clobber fresher data: latest wins, stale
	// results are discarded.
	gen uint64
}

// NewDirectory creates a Directory.
func NewDirectory(logger *slog.Logger, recordStore store.RecordStore) (*Directory, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if recordStore == nil {
		return nil, errors.New("record store cannot be nil")
	}

	return &Directory{logger: logger, store: recordStore}, nil
}

// Run refreshes once, then refreshes again for every notification until
// the context ends. The changes channel is the scoped change-feed
// subscription; its release is the subscriber's responsibility and is tied
// to the same context.
func (d *Directory) Run(ctx context.Context, changes <-chan struct{}) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Error("initial device refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("device directory stopped")
			return
		case _, ok := <-changes:
			if !ok {
				d.logger.Info("change feed closed, device directory stopped")
				return
			}
			if err := d.Refresh(ctx); err != nil {
				d.logger.Error("device refresh failed", "error", err)
			}
		}
	}
}

// Refresh re-runs the aggregation pass over a fresh full read. On failure
// the previous snapshot is kept; results are never partially populated.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	records, err := d.store.FetchAll(ctx)
	if err != nil {
		return err
	}

	summaries := Aggregate(records)
	SortByName(summaries)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		// A newer refresh started while this read was in flight.
		d.logger.Debug("discarding stale device refresh", "gen", gen, "latest", d.gen)
		return nil
	}
	d.summaries = summaries
	d.loaded = true
	return nil
}

// Snapshot returns the latest summaries, sorted by display name. The
// boolean reports whether any refresh has completed yet.
func (d *Directory) Snapshot() ([]DeviceSummary, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DeviceSummary, len(d.summaries))
	copy(out, d.summaries)
	return out, d.loaded
}
