// Package notify runs the after-commit side effects shared by the services:
// dropping cached seat data and publishing lifecycle events.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirinyoku/cineseat/internal/events"
)

// Invalidator drops cached read models of a showtime.
type Invalidator interface {
	InvalidateShowtime(ctx context.Context, showtimeID int64) error
}

type Notifier struct {
	cache Invalidator
	pub   events.Publisher
	log   *slog.Logger
}

// New accepts nil cache and nil publisher.
func New(cache Invalidator, pub events.Publisher, log *slog.Logger) *Notifier {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Notifier{cache: cache, pub: pub, log: log}
}

const sideEffectTimeout = 3 * time.Second

// SeatsChanged invalidates the showtime's cache and publishes e.
// Failures are logged; the state change has already committed.
func (n *Notifier) SeatsChanged(ctx context.Context, e events.Event) {
	if n == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if n.cache != nil {
		if err := n.cache.InvalidateShowtime(ctx, e.ShowtimeID); err != nil {
			n.log.Warn("cache invalidation failed",
				slog.Int64("showtime_id", e.ShowtimeID),
				slog.String("error", err.Error()),
			)
		}
	}

	n.publish(ctx, e)
}

// Publish sends e without touching the cache.
func (n *Notifier) Publish(ctx context.Context, e events.Event) {
	if n == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	n.publish(ctx, e)
}

func (n *Notifier) publish(ctx context.Context, e events.Event) {
	if err := n.pub.Publish(ctx, e); err != nil {
		n.log.Warn("event publish failed",
			slog.String("type", string(e.Type)),
			slog.String("event_id", e.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
