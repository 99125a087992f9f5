package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AvailGate/internal/conf"
	"AvailGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// ErrEventBufferUnavailable is returned when the event buffer has no
// Redis backing, so buffered writes cannot be accepted.
var ErrEventBufferUnavailable = errors.New("events: redis client is nil")

// EventBuffer is the buffered write path's sink: registrations are
// appended to a Redis Stream and drained into the authoritative store
// by a background worker. Entries are deleted only after they have been
// persisted, so a crash between enqueue and drain loses nothing that
// was acknowledged to the caller as buffered.
type EventBuffer struct {
	client *redis.Client
	stream string
	logger *log.Helper
}

// NewEventBuffer creates the Redis Stream event buffer.
func NewEventBuffer(c *conf.Data, rdb *redis.Client, logger log.Logger) *EventBuffer {
	stream := "availgate:writes"
	if c != nil && c.Events != nil && c.Events.Stream != "" {
		stream = c.Events.Stream
	}
	return &EventBuffer{
		client: rdb,
		stream: stream,
		logger: log.NewHelper(logger),
	}
}

// Enqueue appends a registration to the stream and returns the event ID.
func (b *EventBuffer) Enqueue(ctx context.Context, handle string) (string, error) {
	if b.client == nil {
		return "", ErrEventBufferUnavailable
	}

	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{
			"handle":      handle,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("events: failed to enqueue handle %q: %w", handle, err)
	}

	return id, nil
}

// ReadBatch returns up to limit pending events, oldest first. Events
// remain in the stream until acknowledged.
func (b *EventBuffer) ReadBatch(ctx context.Context, limit int) ([]model.BufferedEvent, error) {
	if b.client == nil {
		return nil, ErrEventBufferUnavailable
	}

	msgs, err := b.client.XRangeN(ctx, b.stream, "-", "+", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("events: failed to read stream: %w", err)
	}

	events := make([]model.BufferedEvent, 0, len(msgs))
	for _, msg := range msgs {
		ev := model.BufferedEvent{ID: msg.ID}
		if h, ok := msg.Values["handle"].(string); ok {
			ev.Handle = h
		}
		if ts, ok := msg.Values["enqueued_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				ev.EnqueuedAt = t
			}
		}
		if ev.Handle == "" {
			// Malformed entry: drop it rather than wedging the drain loop.
			b.logger.Warnw("dropping malformed buffered event", "event_id", msg.ID)
			_ = b.client.XDel(ctx, b.stream, msg.ID).Err()
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// Ack removes persisted events from the stream.
func (b *EventBuffer) Ack(ctx context.Context, ids ...string) error {
	if b.client == nil {
		return ErrEventBufferUnavailable
	}
	if len(ids) == 0 {
		return nil
	}
	if err := b.client.XDel(ctx, b.stream, ids...).Err(); err != nil {
		return fmt.Errorf("events: failed to ack %d events: %w", len(ids), err)
	}
	return nil
}

// Pending returns the number of events waiting to be drained.
func (b *EventBuffer) Pending(ctx context.Context) (int64, error) {
	if b.client == nil {
		return 0, ErrEventBufferUnavailable
	}
	n, err := b.client.XLen(ctx, b.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("events: failed to read stream length: %w", err)
	}
	return n, nil
}
