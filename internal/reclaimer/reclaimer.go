// Package reclaimer periodically returns the seats of lapsed holds to the pool.
package reclaimer

import (
	"context"
	"log/slog"
	"time"
)

const lockName = "reclaimer"

type holdExpirer interface {
	ExpireHolds(ctx context.Context) (int, error)
}

// leaseLocker keeps several instances from sweeping at the same time.
type leaseLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

type Reclaimer struct {
	expirer  holdExpirer
	locker   leaseLocker
	interval time.Duration
	log      *slog.Logger
}

// New accepts a nil locker; every tick then sweeps unconditionally.
func New(expirer holdExpirer, locker leaseLocker, interval time.Duration, log *slog.Logger) *Reclaimer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Reclaimer{
		expirer:  expirer,
		locker:   locker,
		interval: interval,
		log:      log,
	}
}

// Run sweeps every interval until ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reclaimer started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reclaimer stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one sweep and reports how many bookings it expired.
//
// The lease only avoids duplicate sweeps. When the lock backend is
// unreachable the sweep runs anyway.
func (r *Reclaimer) Tick(ctx context.Context) int {
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, lockName, r.interval)
		switch {
		case err != nil:
			r.log.Warn("reclaimer lock unavailable, sweeping without it", slog.String("error", err.Error()))
		case !ok:
			r.log.Debug("reclaimer lock held elsewhere")
			return 0
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					r.log.Warn("reclaimer unlock failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	n, err := r.expirer.ExpireHolds(ctx)
	if err != nil {
		r.log.Error("failed to expire holds", slog.Int("expired", n), slog.String("error", err.Error()))
		return n
	}

	if n > 0 {
		r.log.Info("expired holds reclaimed", slog.Int("expired", n))
	}

	return n
}
