package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/uow"
)

type expiredHold struct {
	booking domain.Booking
	seatIDs []int64
	at      time.Time
}

// ExpireHolds cancels PENDING bookings whose hold deadline has passed and
// returns their seats to the pool. Each booking is reclaimed in its own
// transaction; a failure on one does not stop the rest of the batch.
//
// Returns:
//   - int: the number of bookings expired.
//   - error: the joined errors of the bookings that could not be reclaimed.
func (s *Service) ExpireHolds(ctx context.Context) (int, error) {
	const op = "service.booking.ExpireHolds"

	ids, err := s.store.Bookings().ListExpired(ctx, s.clock.Now(), s.cfg.ReclaimBatch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		expired int
		errs    []error
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
			exp, err := s.expireBookingTx(ctx, tx, id, s.clock.Now())
			if err != nil || exp == nil {
				return err
			}
			after(func(ctx context.Context) {
				expired++
				s.expired(ctx, exp)
			})
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", id, err))
		}
	}

	if len(errs) > 0 {
		return expired, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}

	return expired, nil
}

// expireBookingTx cancels booking id inside tx if its hold has lapsed at now.
// It returns nil when there is nothing to do: the booking was confirmed,
// cancelled or extended since it was listed.
func (s *Service) expireBookingTx(ctx context.Context, tx repository.Repos, id uuid.UUID, now time.Time) (*expiredHold, error) {
	b, err := tx.Bookings().GetForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}

	if !b.HoldExpired(now) {
		return nil, nil
	}

	tickets, err := tx.Tickets().ListByBookingForUpdate(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	// Tickets a cashier confirmed by hand keep their seats.
	reserved := withStatus(tickets, domain.TicketReserved)
	seatIDs := seatsOf(reserved)

	if len(seatIDs) > 0 {
		if _, err := tx.Inventory().Release(ctx, b.ShowtimeID, seatIDs, b.ID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Tickets().SetStatus(ctx, idsOf(reserved), domain.TicketCancelled, now); err != nil {
		return nil, err
	}

	// A booking some of whose seats were paid at the box office survives as CONFIRMED.
	final := domain.BookingCancelled
	if len(withStatus(tickets, domain.TicketConfirmed)) > 0 {
		final = domain.BookingConfirmed
	}

	if err := tx.Bookings().SetStatus(ctx, b.ID, final, now); err != nil {
		return nil, err
	}

	if err := tx.History().Append(ctx,
		historyFor(reserved, domain.TicketCancelled, domain.ActionHoldExpired, domain.SystemActor, "", now)...,
	); err != nil {
		return nil, err
	}

	b.Status = final
	b.UpdatedAt = now

	return &expiredHold{booking: *b, seatIDs: seatIDs, at: now}, nil
}

func (s *Service) expired(ctx context.Context, exp *expiredHold) {
	s.log.Info("booking hold expired",
		slog.String("booking_id", exp.booking.ID.String()),
		slog.Int64("showtime_id", exp.booking.ShowtimeID),
		slog.Int("released", len(exp.seatIDs)),
	)
	s.notify.SeatsChanged(ctx, bookingEvent(events.BookingExpired, exp.booking, exp.seatIDs, domain.SystemActor, exp.at))
}
