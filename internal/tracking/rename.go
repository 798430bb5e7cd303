package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rotaviz.dev/rotaviz/internal/store"
)

// RenameSignal broadcasts the process-wide "device renamed" event after a
// successful rename so independent views refresh without direct coupling.
type RenameSignal interface {
	DeviceRenamed(ctx context.Context, deviceID, name string)
}

// RenameCoordinator applies a new display name to every location record of
// a device plus the denormalized device summary, as one atomic batch.
type RenameCoordinator struct {
	logger *slog.Logger
	store  store.RecordStore
	signal RenameSignal // optional

	mu       sync.Mutex
	inFlight map[string]bool

	now func() time.Time
}

// NewRenameCoordinator creates a RenameCoordinator. The signal may be nil
// when no other views need notifying (tests, one-shot tools).
func NewRenameCoordinator(logger *slog.Logger, recordStore store.RecordStore, signal RenameSignal) (*RenameCoordinator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if recordStore == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}

	return &RenameCoordinator{
		logger:   logger,
		store:    recordStore,
		signal:   signal,
		inFlight: make(map[string]bool),
		now:      time.Now,
	}, nil
}

// Rename validates the request, reloads the full record set to discover
// every record key belonging to the device, and submits one atomic batch.
// It returns the number of records updated.
//
// Sequencing: observers are notified only after the batch has committed
// and a confirmed re-read has observed the new name. The original flow
// trusted a fixed settle delay instead, which could surface pre-rename
// data under load.
func (c *RenameCoordinator) Rename(ctx context.Context, deviceID, newName string) (int, error) {
	if deviceID == "" {
		return 0, &ValidationError{Msg: "no device selected for rename"}
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		return 0, &ValidationError{Msg: "vendor name is required"}
	}

	if !c.acquire(deviceID) {
		return 0, &ValidationError{Msg: "a rename for this device is already in progress"}
	}
	defer c.release(deviceID)

	// A rename must not rely on a stale or partial view, so the complete
	// key set comes from a fresh full read.
	records, err := c.store.FetchAll(ctx)
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0)
	var lastSeen int64
	for _, rec := range records {
		if rec.DeviceID != deviceID {
			continue
		}
		keys = append(keys, rec.ID)
		if rec.Timestamp > lastSeen {
			lastSeen = rec.Timestamp
		}
	}

	if len(keys) == 0 {
		return 0, &NothingToRenameError{DeviceID: deviceID}
	}

	nowMs := c.now().UnixMilli()
	if lastSeen == 0 {
		lastSeen = nowMs
	}

	batch := store.Batch{
		RecordKeys: keys,
		NewName:    name,
		Summary: store.Device{
			DeviceID:  deviceID,
			Name:      name,
			LastSeen:  lastSeen,
			CreatedMs: nowMs,
		},
	}

	if err := c.store.ApplyBatch(ctx, batch); err != nil {
		return 0, err
	}

	if err := c.confirm(ctx, deviceID, name); err != nil {
		return 0, err
	}

	c.logger.Info("device renamed",
		"device_id", deviceID,
		"name", name,
		"records_updated", len(keys),
	)

	if c.signal != nil {
		c.signal.DeviceRenamed(ctx, deviceID, name)
	}
	return len(keys), nil
}

// confirm re-reads the store after the commit and verifies the new name is
// visible before observers are told to refresh.
func (c *RenameCoordinator) confirm(ctx context.Context, deviceID, name string) error {
	records, err := c.store.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("rename committed but confirmation read failed: %w", err)
	}

	for _, rec := range records {
		if rec.DeviceID == deviceID && rec.DeviceName != name {
			return fmt.Errorf("rename committed but record %s still reads %q", rec.ID, rec.DeviceName)
		}
	}
	return nil
}

// acquire marks a device rename as in flight. A second submission for the
// same device while one is pending is rejected rather than queued.
func (c *RenameCoordinator) acquire(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[deviceID] {
		return false
	}
	c.inFlight[deviceID] = true
	return true
}

func (c *RenameCoordinator) release(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, deviceID)
}
