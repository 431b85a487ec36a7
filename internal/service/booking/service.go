package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/service/notify"
	"github.com/kirinyoku/cineseat/internal/uow"
)

type Config struct {
	HoldTTL      time.Duration
	ReclaimBatch int
}

// codeAttempts bounds how often Create redraws codes after losing on a duplicate.
const codeAttempts = 3

// Service is the reservation coordinator: every operation that changes seat
// ownership runs here as one unit of work.
type Service struct {
	store  repository.Store
	uow    *uow.UoW
	clock  clock.Clock
	notify *notify.Notifier
	log    *slog.Logger
	cfg    Config

	newReference    func() string
	newTicketNumber func() string
}

func New(
	store repository.Store,
	clk clock.Clock,
	notifier *notify.Notifier,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = domain.DefaultHoldTTL
	}

	if cfg.ReclaimBatch <= 0 {
		cfg.ReclaimBatch = 100
	}

	if clk == nil {
		clk = clock.System{}
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		clock:  clk,
		notify: notifier,
		log:    log,
		cfg:    cfg,

		newReference:    domain.NewBookingReference,
		newTicketNumber: domain.NewTicketNumber,
	}
}

type CreateInput struct {
	ShowtimeID int64
	SeatIDs    []int64
	Customer   domain.Customer
}

// Create holds the requested seats for a new PENDING booking.
//
// Returns:
//   - *domain.BookingWithTickets: the booking with one RESERVED ticket per seat.
//   - error: domain.ErrNotFound if the showtime or a seat does not exist.
//   - error: domain.ErrSeatUnavailable if any requested seat is held or booked.
//   - error: domain.ErrValidation on an empty or malformed request.
//   - error: domain.ErrTransactionFailure if fresh codes kept colliding with existing ones.
func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.BookingWithTickets, error) {
	const op = "service.booking.Create"

	seatIDs, err := domain.NormalizeSeatIDs(in.SeatIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customer, err := normalizeCustomer(in.Customer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// A duplicate code aborts the whole transaction, so each attempt is a new one.
	var out *domain.BookingWithTickets
	for attempt := 1; ; attempt++ {
		out, err = s.create(ctx, p, in.ShowtimeID, seatIDs, customer)
		if !errors.Is(err, repository.ErrDuplicateCode) {
			break
		}
		if attempt == codeAttempts {
			err = fmt.Errorf("%w: %w", domain.ErrTransactionFailure, err)
			break
		}
		s.log.Warn("generated code already taken, drawing a new one",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) create(
	ctx context.Context,
	p domain.Principal,
	showtimeID int64,
	seatIDs []int64,
	customer domain.Customer,
) (*domain.BookingWithTickets, error) {
	var out *domain.BookingWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		st, err := tx.Catalog().GetShowtime(ctx, showtimeID)
		if err != nil {
			return notFound(err, "showtime", showtimeID)
		}

		rows, err := s.lockSeats(ctx, tx, st.ID, seatIDs)
		if err != nil {
			return err
		}

		// Holds that lapsed but were not swept yet are reclaimed before the claim.
		stale := staleHolders(rows, now)
		for _, id := range stale {
			exp, err := s.expireBookingTx(ctx, tx, id, now)
			if err != nil {
				return err
			}
			if exp != nil {
				after(func(ctx context.Context) { s.expired(ctx, exp) })
			}
		}
		if len(stale) > 0 {
			if rows, err = s.lockSeats(ctx, tx, st.ID, seatIDs); err != nil {
				return err
			}
		}

		var taken []int64
		for _, r := range rows {
			if r.Status != domain.SeatAvailable {
				taken = append(taken, r.SeatID)
			}
		}
		if len(taken) > 0 {
			return &domain.SeatsUnavailableError{SeatIDs: taken}
		}

		seats, err := tx.Catalog().SeatsByIDs(ctx, st.RoomID, seatIDs)
		if err != nil {
			return err
		}
		if len(seats) != len(seatIDs) {
			return &domain.NotFoundError{Entity: "seat", Key: missing(seatIDs, seatIDsOf(seats))}
		}

		b := domain.Booking{
			ID:             uuid.New(),
			Reference:      s.newReference(),
			ShowtimeID:     st.ID,
			BranchID:       st.BranchID,
			UserID:         p.UserID,
			Customer:       customer,
			TicketQuantity: len(seats),
			Status:         domain.BookingPending,
			ExpiresAt:      now.Add(s.cfg.HoldTTL),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		tickets := make([]domain.Ticket, 0, len(seats))
		for _, seat := range seats {
			price := domain.UnitPrice(st.BasePriceCents, seat.PriceMultiplier)
			b.TotalCents += price
			tickets = append(tickets, domain.Ticket{
				ID:              uuid.New(),
				Number:          s.newTicketNumber(),
				BookingID:       b.ID,
				ShowtimeID:      st.ID,
				SeatID:          seat.ID,
				SeatLabel:       seat.Label(),
				SeatType:        seat.SeatType,
				UnitPriceCents:  price,
				FinalPriceCents: price,
				QRCodeData:      domain.QRCodeData(b.Reference, seat.ID),
				Status:          domain.TicketReserved,
				CreatedAt:       now,
				UpdatedAt:       now,
			})
		}

		if err := tx.Bookings().Insert(ctx, &b); err != nil {
			return err
		}

		if err := tx.Tickets().InsertBatch(ctx, tickets); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %w", &domain.SeatsUnavailableError{SeatIDs: seatIDs}, err)
			}
			return err
		}

		n, err := tx.Inventory().Reserve(ctx, st.ID, seatIDs, b.ID, b.ExpiresAt)
		if err != nil {
			return err
		}
		if n != int64(len(seatIDs)) {
			return &domain.SeatsUnavailableError{SeatIDs: seatIDs}
		}

		out = &domain.BookingWithTickets{Booking: b, Tickets: tickets}

		after(func(ctx context.Context) {
			s.log.Info("booking created",
				slog.String("booking_id", b.ID.String()),
				slog.String("reference", b.Reference),
				slog.Int64("showtime_id", b.ShowtimeID),
				slog.Int("seats", len(seatIDs)),
			)
			s.notify.SeatsChanged(ctx, bookingEvent(events.BookingCreated, b, seatIDs, p.Actor(), now))
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

type ConfirmInput struct {
	BookingID   uuid.UUID
	AmountCents int64
	Method      string
}

// Confirm records a successful payment: the booking, its reserved tickets and
// their seats become CONFIRMED/BOOKED in one transaction.
//
// Returns:
//   - error: domain.ErrInvalidState if the booking is not PENDING or its hold has expired.
//   - error: domain.ErrValidation if the amount does not cover the reserved tickets.
func (s *Service) Confirm(ctx context.Context, p domain.Principal, in ConfirmInput) (*domain.BookingWithTickets, error) {
	const op = "service.booking.Confirm"

	method := strings.TrimSpace(in.Method)
	if method == "" {
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "payment_method", Reason: "is required"})
	}
	if in.AmountCents < 0 {
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "amount", Reason: "must not be negative"})
	}

	var out *domain.BookingWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		b, err := tx.Bookings().GetForUpdate(ctx, in.BookingID)
		if err != nil {
			return notFound(err, "booking", in.BookingID)
		}

		if err := authorize(p, b); err != nil {
			return err
		}

		if b.Status != domain.BookingPending {
			return &domain.StateError{Entity: "booking", Status: string(b.Status), Op: "confirm"}
		}
		if b.HoldExpired(now) {
			return domain.ErrHoldExpired
		}

		tickets, err := tx.Tickets().ListByBookingForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}

		reserved := withStatus(tickets, domain.TicketReserved)
		if len(reserved) == 0 && len(withStatus(tickets, domain.TicketConfirmed)) == 0 {
			return fmt.Errorf("%w: no live tickets left",
				&domain.StateError{Entity: "booking", Status: string(b.Status), Op: "confirm"})
		}

		var due int64
		for _, t := range reserved {
			due += t.FinalPriceCents
		}
		if in.AmountCents < due {
			return &domain.ValidationError{
				Field:  "amount",
				Reason: fmt.Sprintf("%d does not cover the amount due %d", in.AmountCents, due),
			}
		}

		seatIDs := seatsOf(reserved)
		if err := s.bookSeats(ctx, tx, b, seatIDs); err != nil {
			return err
		}

		if _, err := tx.Tickets().SetStatus(ctx, idsOf(reserved), domain.TicketConfirmed, now); err != nil {
			return err
		}

		if err := tx.Bookings().SetStatus(ctx, b.ID, domain.BookingConfirmed, now); err != nil {
			return err
		}

		if err := tx.Bookings().InsertPayment(ctx, &domain.Payment{
			ID:          uuid.New(),
			BookingID:   b.ID,
			AmountCents: in.AmountCents,
			Method:      method,
			PaidAt:      now,
		}); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &domain.StateError{Entity: "booking", Status: "PAID", Op: "confirm"}
			}
			return err
		}

		if err := tx.History().Append(ctx,
			historyFor(reserved, domain.TicketConfirmed, domain.ActionPaymentConfirm, p.Actor(), method, now)...,
		); err != nil {
			return err
		}

		b.Status = domain.BookingConfirmed
		b.UpdatedAt = now
		out = &domain.BookingWithTickets{Booking: *b, Tickets: applyStatus(tickets, reserved, domain.TicketConfirmed, now)}

		after(func(ctx context.Context) {
			s.log.Info("booking confirmed",
				slog.String("booking_id", b.ID.String()),
				slog.Int64("amount_cents", in.AmountCents),
				slog.Int("seats", len(seatIDs)),
			)
			s.notify.SeatsChanged(ctx, bookingEvent(events.BookingConfirmed, *b, seatIDs, p.Actor(), now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Cancel voids a PENDING or CONFIRMED booking and releases every seat it still holds.
//
// Returns:
//   - error: domain.ErrAlreadyCancelled if the booking is already CANCELLED.
//   - error: domain.ErrInvalidState if one of its tickets has been used.
func (s *Service) Cancel(ctx context.Context, p domain.Principal, bookingID uuid.UUID) (*domain.BookingWithTickets, error) {
	const op = "service.booking.Cancel"

	var out *domain.BookingWithTickets

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking", bookingID)
		}

		if err := authorize(p, b); err != nil {
			return err
		}

		if b.Status == domain.BookingCancelled {
			return domain.ErrAlreadyCancelled
		}

		tickets, err := tx.Tickets().ListByBookingForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}

		if used := withStatus(tickets, domain.TicketUsed); len(used) > 0 {
			return fmt.Errorf("%w: ticket %s was already used",
				&domain.StateError{Entity: "booking", Status: string(b.Status), Op: "cancel"}, used[0].Number)
		}

		live := liveTickets(tickets)
		seatIDs := seatsOf(live)

		if len(seatIDs) > 0 {
			if _, err := tx.Inventory().Release(ctx, b.ShowtimeID, seatIDs, b.ID); err != nil {
				return err
			}
		}

		if confirmed := len(withStatus(live, domain.TicketConfirmed)); confirmed > 0 {
			if err := tx.Catalog().AdjustShowtimeCounters(ctx, b.ShowtimeID, confirmed, -confirmed); err != nil {
				return err
			}
		}

		if _, err := tx.Tickets().SetStatus(ctx, idsOf(live), domain.TicketCancelled, now); err != nil {
			return err
		}

		if err := tx.Bookings().SetStatus(ctx, b.ID, domain.BookingCancelled, now); err != nil {
			return err
		}

		if err := tx.History().Append(ctx,
			historyFor(live, domain.TicketCancelled, domain.ActionBookingCancel, p.Actor(), "", now)...,
		); err != nil {
			return err
		}

		b.Status = domain.BookingCancelled
		b.UpdatedAt = now
		out = &domain.BookingWithTickets{Booking: *b, Tickets: applyStatus(tickets, live, domain.TicketCancelled, now)}

		after(func(ctx context.Context) {
			s.log.Info("booking cancelled",
				slog.String("booking_id", b.ID.String()),
				slog.String("by", p.Actor()),
				slog.Int("released", len(seatIDs)),
			)
			s.notify.SeatsChanged(ctx, bookingEvent(events.BookingCancelled, *b, seatIDs, p.Actor(), now))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.BookingWithTickets, error) {
	const op = "service.booking.Get"

	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "booking", id))
	}

	out, err := s.withTickets(ctx, p, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) GetByReference(ctx context.Context, p domain.Principal, reference string) (*domain.BookingWithTickets, error) {
	const op = "service.booking.GetByReference"

	reference = strings.ToUpper(strings.TrimSpace(reference))

	b, err := s.store.Bookings().GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "booking", reference))
	}

	out, err := s.withTickets(ctx, p, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Service) withTickets(ctx context.Context, p domain.Principal, b *domain.Booking) (*domain.BookingWithTickets, error) {
	if err := authorize(p, b); err != nil {
		return nil, err
	}

	tickets, err := s.store.Tickets().ListByBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	return &domain.BookingWithTickets{Booking: *b, Tickets: tickets}, nil
}

// lockSeats locks the inventory rows of seatIDs; a seat the showtime does not have is NotFound.
func (s *Service) lockSeats(ctx context.Context, tx repository.Repos, showtimeID int64, seatIDs []int64) ([]domain.ShowtimeSeat, error) {
	rows, err := tx.Inventory().Lock(ctx, showtimeID, seatIDs)
	if err != nil {
		return nil, err
	}

	if len(rows) != len(seatIDs) {
		found := make([]int64, len(rows))
		for i, r := range rows {
			found[i] = r.SeatID
		}
		return nil, &domain.NotFoundError{Entity: "seat", Key: missing(seatIDs, found)}
	}

	return rows, nil
}

// bookSeats flips held seats to BOOKED and moves them between the showtime counters.
func (s *Service) bookSeats(ctx context.Context, tx repository.Repos, b *domain.Booking, seatIDs []int64) error {
	if len(seatIDs) == 0 {
		return nil
	}

	n, err := tx.Inventory().Book(ctx, b.ShowtimeID, seatIDs, b.ID)
	if err != nil {
		return err
	}
	if n != int64(len(seatIDs)) {
		return &domain.SeatsUnavailableError{SeatIDs: seatIDs}
	}

	return tx.Catalog().AdjustShowtimeCounters(ctx, b.ShowtimeID, -len(seatIDs), len(seatIDs))
}

func normalizeCustomer(c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	if c.Name == "" {
		return c, &domain.ValidationError{Field: "customer_name", Reason: "is required"}
	}
	if c.Email == "" {
		return c, &domain.ValidationError{Field: "customer_email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return c, &domain.ValidationError{Field: "customer_email", Reason: "is not a valid address"}
	}

	return c, nil
}
