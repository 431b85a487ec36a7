package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/redis/go-redis/v9"
)

// SeatChange is the message relayed to live seat-map subscribers.
type SeatChange struct {
	Type       events.Type `json:"type"`
	ShowtimeID int64       `json:"showtime_id"`
	SeatIDs    []int64     `json:"seat_ids,omitempty"`
	TsUnix     int64       `json:"ts_unix"`
}

// SeatsPubSub broadcasts seat changes per showtime. It satisfies events.Publisher,
// so it is fed the same lifecycle events as the brokers.
type SeatsPubSub struct {
	rdb *redis.Client
}

func NewSeatsPubSub(rdb *redis.Client) *SeatsPubSub {
	return &SeatsPubSub{rdb: rdb}
}

func (p *SeatsPubSub) Publish(ctx context.Context, e events.Event) error {
	const op = "redis.SeatsPubSub.Publish"

	b, err := json.Marshal(SeatChange{
		Type:       e.Type,
		ShowtimeID: e.ShowtimeID,
		SeatIDs:    e.SeatIDs,
		TsUnix:     e.OccurredAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, ChannelShowtimeChanged(e.ShowtimeID), b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *SeatsPubSub) Close() error { return nil }

// Subscribe blocks, calling handler for every change of showtimeID until ctx is done.
func (p *SeatsPubSub) Subscribe(ctx context.Context, showtimeID int64, handler func(ctx context.Context, c SeatChange)) error {
	sub := p.rdb.Subscribe(ctx, ChannelShowtimeChanged(showtimeID))
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var c SeatChange
			if err := json.Unmarshal([]byte(m.Payload), &c); err == nil && c.ShowtimeID == showtimeID {
				handler(ctx, c)
			}
		}
	}
}
