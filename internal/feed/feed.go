// Package feed carries the two process-wide notifications between
// components: "locations changed" (the store's change feed) and "device
// renamed" (broadcast after a successful rename). Both travel over fanout
// exchanges so independent views refresh without direct coupling.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"rotaviz.dev/rotaviz/pkg/mq"
)

// Default exchange names.
const (
	ChangesExchange = "locations.changed"
	RenamesExchange = "devices.renamed"
)

// RenamedEvent is the payload of a device-renamed broadcast.
type RenamedEvent struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}

// Broadcaster publishes both notifications. It satisfies the store's
// Notifier and the rename coordinator's RenameSignal.
type Broadcaster struct {
	logger  *slog.Logger
	changes mq.ClientInterface
	renames mq.ClientInterface
}

// NewBroadcaster creates a Broadcaster over two fanout clients.
func NewBroadcaster(logger *slog.Logger, changes, renames mq.ClientInterface) *Broadcaster {
	return &Broadcaster{logger: logger, changes: changes, renames: renames}
}

// LocationsChanged signals that the locations collection moved. The
// notification carries no payload diff; subscribers re-read. Delivery is
// best effort: a failed publish is logged, never propagated into the write
// path that triggered it.
func (b *Broadcaster) LocationsChanged(ctx context.Context) {
	if b.changes == nil {
		return
	}
	if err := b.changes.UnsafePush(ctx, []byte(`{}`)); err != nil {
		b.logger.Warn("failed to publish change notification", "error", err)
	}
}

// DeviceRenamed broadcasts a successful rename. Confirmed delivery: the
// rename is already committed by the time this runs, and consumers rely on
// the event to refresh.
func (b *Broadcaster) DeviceRenamed(ctx context.Context, deviceID, name string) {
	if b.renames == nil {
		return
	}
	payload, err := json.Marshal(RenamedEvent{DeviceID: deviceID, Name: name})
	if err != nil {
		b.logger.Error("failed to encode renamed event", "error", err)
		return
	}
	if err := b.renames.Push(ctx, payload); err != nil {
		b.logger.Error("failed to publish renamed event", "device_id", deviceID, "error", err)
	}
}

// Subscribe turns a broadcast client into a coalescing notification
// channel. Bursts collapse into a single pending notification; the channel
// closes when the context ends or the client's delivery stream closes,
// releasing the subscription.
func Subscribe(ctx context.Context, logger *slog.Logger, client mq.ClientInterface) (<-chan struct{}, error) {
	deliveries, err := client.Consume()
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					logger.Warn("notification stream closed")
					return
				}
				if err := d.Ack(false); err != nil {
					logger.Error("failed to ack notification", "error", err)
				}
				select {
				case out <- struct{}{}:
				default:
					// A refresh is already pending; coalesce.
				}
			}
		}
	}()
	return out, nil
}
