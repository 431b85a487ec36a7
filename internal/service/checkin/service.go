package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/service/notify"
	"github.com/kirinyoku/cineseat/internal/uow"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type Config struct {
	// Window is how far before and after the showtime start a ticket may be checked in.
	Window time.Duration
}

type Service struct {
	store  repository.Store
	uow    *uow.UoW
	clock  clock.Clock
	notify *notify.Notifier
	log    *slog.Logger
	cfg    Config
}

func New(
	store repository.Store,
	clk clock.Clock,
	notifier *notify.Notifier,
	log *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Window <= 0 {
		cfg.Window = domain.DefaultCheckinWindow
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
	}
}

// CheckIn admits the holder of a CONFIRMED ticket. The checks run in order,
// each with its own failure, against the ticket row locked for the transaction:
//
//   - the ticket exists (domain.ErrNotFound);
//   - it is CONFIRMED (domain.ErrAlreadyCheckedIn when USED, domain.ErrInvalidState otherwise);
//   - now is inside the window around the showtime start (domain.ErrOutsideWindow).
//
// The status flip and its history row commit together.
func (s *Service) CheckIn(ctx context.Context, p domain.Principal, number string) (*domain.Ticket, error) {
	const op = "service.checkin.CheckIn"

	if !p.IsStaff() {
		return nil, fmt.Errorf("%s: %w: staff role required", op, domain.ErrForbidden)
	}

	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "ticket_number", Reason: "is required"})
	}

	var out *domain.Ticket

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		now := s.clock.Now()

		t, err := tx.Tickets().GetByNumberForUpdate(ctx, number)
		if err != nil {
			return notFound(err, "ticket", number)
		}

		st, err := tx.Catalog().GetShowtime(ctx, t.ShowtimeID)
		if err != nil {
			return notFound(err, "showtime", t.ShowtimeID)
		}

		if !p.CanAccessBranch(st.BranchID) {
			return fmt.Errorf("%w: ticket belongs to another branch", domain.ErrForbidden)
		}

		if err := domain.CheckInEligible(t.Status); err != nil {
			return err
		}

		if err := domain.CheckWindow(st.StartsAt, now, s.cfg.Window); err != nil {
			return err
		}

		n, err := tx.Tickets().MarkUsed(ctx, t.ID, now, p.Actor())
		if err != nil {
			return err
		}
		if n != 1 {
			return domain.ErrAlreadyCheckedIn
		}

		if err := tx.History().Append(ctx, domain.TicketHistory{
			TicketID:  t.ID,
			OldStatus: t.Status,
			NewStatus: domain.TicketUsed,
			Action:    domain.ActionCheckIn,
			ActionBy:  p.Actor(),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		checkedAt := now
		t.Status = domain.TicketUsed
		t.CheckedIn = true
		t.CheckedInAt = &checkedAt
		t.CheckedInBy = p.Actor()
		t.UpdatedAt = now
		out = t

		after(func(ctx context.Context) {
			s.log.Info("ticket checked in",
				slog.String("ticket_number", t.Number),
				slog.Int64("showtime_id", t.ShowtimeID),
				slog.String("by", p.Actor()),
			)

			e := events.New(events.TicketCheckedIn, t.ShowtimeID, now)
			bookingID := t.BookingID
			e.BookingID = &bookingID
			e.TicketNumber = t.Number
			e.SeatIDs = []int64{t.SeatID}
			e.Actor = p.Actor()
			s.notify.Publish(ctx, e)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// History lists audit rows newest first. Staff bound to a branch only see that branch.
func (s *Service) History(ctx context.Context, p domain.Principal, f domain.HistoryFilter) ([]domain.HistoryRecord, error) {
	const op = "service.checkin.History"

	if !p.IsStaff() {
		return nil, fmt.Errorf("%s: %w: staff role required", op, domain.ErrForbidden)
	}

	if p.Role != domain.RoleAdmin && p.BranchID != nil {
		if f.BranchID != nil && *f.BranchID != *p.BranchID {
			return nil, fmt.Errorf("%s: %w: branch %d is not yours", op, domain.ErrForbidden, *f.BranchID)
		}
		branch := *p.BranchID
		f.BranchID = &branch
	}

	switch {
	case f.Limit <= 0:
		f.Limit = defaultHistoryLimit
	case f.Limit > maxHistoryLimit:
		f.Limit = maxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	out, err := s.store.History().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// TicketDetails returns a ticket with its showtime and full history, newest first.
func (s *Service) TicketDetails(ctx context.Context, p domain.Principal, number string) (*domain.TicketDetails, error) {
	const op = "service.checkin.TicketDetails"

	if !p.IsStaff() {
		return nil, fmt.Errorf("%s: %w: staff role required", op, domain.ErrForbidden)
	}

	number = strings.ToUpper(strings.TrimSpace(number))

	t, err := s.store.Tickets().GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "ticket", number))
	}

	st, err := s.store.Catalog().GetShowtime(ctx, t.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "showtime", t.ShowtimeID))
	}

	if !p.CanAccessBranch(st.BranchID) {
		return nil, fmt.Errorf("%s: %w: ticket belongs to another branch", op, domain.ErrForbidden)
	}

	history, err := s.store.History().ListByTicket(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.TicketDetails{Ticket: *t, Showtime: *st, History: history}, nil
}

func notFound(err error, entity string, key any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
	}
	return err
}
