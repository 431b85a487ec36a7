package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/uow"
)

// Ticket returns one ticket by its number.
func (s *Service) Ticket(ctx context.Context, p domain.Principal, number string) (*domain.Ticket, error) {
	const op = "service.booking.Ticket"

	number = normalizeNumber(number)

	t, err := s.store.Tickets().GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "ticket", number))
	}

	b, err := s.store.Bookings().Get(ctx, t.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "booking", t.BookingID))
	}

	if err := authorize(p, b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// ConfirmTicket marks one RESERVED ticket as paid at the box office. Once no
// RESERVED ticket is left in the booking, the booking itself is CONFIRMED.
//
// Returns:
//   - error: domain.ErrForbidden unless p is staff of the booking's branch.
//   - error: domain.ErrInvalidState if the ticket is not RESERVED, or the booking is cancelled or expired.
func (s *Service) ConfirmTicket(ctx context.Context, p domain.Principal, number, note string) (*domain.Ticket, error) {
	const op = "service.booking.ConfirmTicket"

	if err := requireStaff(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	number = normalizeNumber(number)

	var out *domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		b, t, err := s.lockTicket(ctx, tx, p, number)
		if err != nil {
			return err
		}

		if b.Status == domain.BookingCancelled {
			return &domain.StateError{Entity: "ticket of booking", Status: string(b.Status), Op: "confirm"}
		}
		if b.HoldExpired(now) {
			return domain.ErrHoldExpired
		}
		if t.Status != domain.TicketReserved {
			return &domain.StateError{Entity: "ticket", Status: string(t.Status), Op: "confirm"}
		}

		if err := s.bookSeats(ctx, tx, b, []int64{t.SeatID}); err != nil {
			return err
		}

		if _, err := tx.Tickets().SetStatus(ctx, idsOf([]domain.Ticket{*t}), domain.TicketConfirmed, now); err != nil {
			return err
		}

		if err := tx.History().Append(ctx,
			historyFor([]domain.Ticket{*t}, domain.TicketConfirmed, domain.ActionManualConfirm, p.Actor(), note, now)...,
		); err != nil {
			return err
		}

		siblings, err := tx.Tickets().ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingPending && len(withStatus(siblings, domain.TicketReserved)) == 0 {
			if err := tx.Bookings().SetStatus(ctx, b.ID, domain.BookingConfirmed, now); err != nil {
				return err
			}
		}

		t.Status = domain.TicketConfirmed
		t.UpdatedAt = now
		out = t

		after(func(ctx context.Context) {
			s.log.Info("ticket confirmed",
				slog.String("ticket_number", t.Number),
				slog.String("by", p.Actor()),
			)
			s.notify.SeatsChanged(ctx, ticketEvent(events.TicketConfirmed, *b, *t, p.Actor(), now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// CancelTicket voids one RESERVED or CONFIRMED ticket and frees its seat,
// leaving the sibling tickets untouched. A booking left without live tickets
// is cancelled with it.
//
// Returns:
//   - error: domain.ErrForbidden unless p is staff of the booking's branch.
//   - error: domain.ErrInvalidState if the ticket is USED or already CANCELLED.
func (s *Service) CancelTicket(ctx context.Context, p domain.Principal, number, note string) (*domain.Ticket, error) {
	const op = "service.booking.CancelTicket"

	if err := requireStaff(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	number = normalizeNumber(number)

	var out *domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		b, t, err := s.lockTicket(ctx, tx, p, number)
		if err != nil {
			return err
		}

		if !domain.CanCancelTicket(t.Status) {
			return &domain.StateError{Entity: "ticket", Status: string(t.Status), Op: "cancel"}
		}

		if _, err := tx.Inventory().Release(ctx, b.ShowtimeID, []int64{t.SeatID}, b.ID); err != nil {
			return err
		}

		if t.Status == domain.TicketConfirmed {
			if err := tx.Catalog().AdjustShowtimeCounters(ctx, b.ShowtimeID, 1, -1); err != nil {
				return err
			}
		}

		if _, err := tx.Tickets().SetStatus(ctx, idsOf([]domain.Ticket{*t}), domain.TicketCancelled, now); err != nil {
			return err
		}

		if err := tx.History().Append(ctx,
			historyFor([]domain.Ticket{*t}, domain.TicketCancelled, domain.ActionManualCancel, p.Actor(), note, now)...,
		); err != nil {
			return err
		}

		siblings, err := tx.Tickets().ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if len(liveTickets(siblings)) == 0 {
			if err := tx.Bookings().SetStatus(ctx, b.ID, domain.BookingCancelled, now); err != nil {
				return err
			}
		}

		t.Status = domain.TicketCancelled
		t.UpdatedAt = now
		out = t

		after(func(ctx context.Context) {
			s.log.Info("ticket cancelled",
				slog.String("ticket_number", t.Number),
				slog.String("by", p.Actor()),
			)
			s.notify.SeatsChanged(ctx, ticketEvent(events.TicketCancelled, *b, *t, p.Actor(), now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// lockTicket locks the owning booking first, then the ticket, the same order
// Confirm and Cancel take, so the two paths cannot deadlock on each other.
func (s *Service) lockTicket(
	ctx context.Context,
	tx repository.Repos,
	p domain.Principal,
	number string,
) (*domain.Booking, *domain.Ticket, error) {
	found, err := tx.Tickets().GetByNumber(ctx, number)
	if err != nil {
		return nil, nil, notFound(err, "ticket", number)
	}

	b, err := tx.Bookings().GetForUpdate(ctx, found.BookingID)
	if err != nil {
		return nil, nil, notFound(err, "booking", found.BookingID)
	}

	if err := authorize(p, b); err != nil {
		return nil, nil, err
	}

	t, err := tx.Tickets().GetByNumberForUpdate(ctx, number)
	if err != nil {
		return nil, nil, notFound(err, "ticket", number)
	}

	return b, t, nil
}

func normalizeNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}
