package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/service/notify"
	"github.com/kirinyoku/cineseat/internal/uow"
)

// Service seeds the catalog data the booking core depends on: room seats,
// showtimes and their seat inventory.
type Service struct {
	store  repository.Store
	uow    *uow.UoW
	notify *notify.Notifier
	log    *slog.Logger
}

func New(store repository.Store, notifier *notify.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		notify: notifier,
		log:    log,
	}
}

type SeatInput struct {
	Row      string
	Number   int
	SeatType string
}

// BatchCreateSeats adds seats to a room. Seats already present at the same
// (row, number) are skipped.
//
// Returns:
//   - int64: the number of seats created.
//   - error: domain.ErrValidation on an empty row, non-positive number or unknown seat type.
func (s *Service) BatchCreateSeats(ctx context.Context, p domain.Principal, roomID int64, in []SeatInput) (int64, error) {
	const op = "service.admin.BatchCreateSeats"

	if !p.CanManage() {
		return 0, fmt.Errorf("%s: %w: manager role required", op, domain.ErrForbidden)
	}

	if roomID <= 0 {
		return 0, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "room_id", Reason: "must be positive"})
	}

	if len(in) == 0 {
		return 0, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "seats", Reason: "at least one seat is required"})
	}

	var created int64

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		types, err := tx.Catalog().SeatTypes(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(types))
		for _, t := range types {
			known[t.Name] = true
		}

		seats := make([]domain.Seat, 0, len(in))
		for i, si := range in {
			seat := domain.Seat{
				Row:      strings.ToUpper(strings.TrimSpace(si.Row)),
				Number:   si.Number,
				SeatType: strings.ToUpper(strings.TrimSpace(si.SeatType)),
			}
			if seat.SeatType == "" {
				seat.SeatType = "STANDARD"
			}

			field := fmt.Sprintf("seats[%d]", i)
			switch {
			case seat.Row == "":
				return &domain.ValidationError{Field: field, Reason: "row is required"}
			case seat.Number <= 0:
				return &domain.ValidationError{Field: field, Reason: "number must be positive"}
			case !known[seat.SeatType]:
				return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("unknown seat type %q", seat.SeatType)}
			}

			seats = append(seats, seat)
		}

		created, err = tx.Catalog().CreateSeats(ctx, roomID, seats)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("seats created", slog.Int64("room_id", roomID), slog.Int64("created", created))

	return created, nil
}

type ShowtimeInput struct {
	BranchID       int64
	RoomID         int64
	MovieID        int64
	BasePriceCents int64
	StartsAt       time.Time
	Duration       time.Duration
}

// CreateShowtime creates a showtime and, in the same transaction, one AVAILABLE
// inventory row per seat of its room.
//
// Returns:
//   - error: domain.ErrForbidden if a manager targets another branch.
//   - error: domain.ErrValidation if the room has no seats.
func (s *Service) CreateShowtime(ctx context.Context, p domain.Principal, in ShowtimeInput) (*domain.Showtime, error) {
	const op = "service.admin.CreateShowtime"

	if !p.CanManage() {
		return nil, fmt.Errorf("%s: %w: manager role required", op, domain.ErrForbidden)
	}
	if !p.CanAccessBranch(in.BranchID) {
		return nil, fmt.Errorf("%s: %w: branch %d is not yours", op, domain.ErrForbidden, in.BranchID)
	}

	switch {
	case in.BranchID <= 0:
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "branch_id", Reason: "must be positive"})
	case in.RoomID <= 0:
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "room_id", Reason: "must be positive"})
	case in.BasePriceCents < 0:
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "base_price_cents", Reason: "must not be negative"})
	case in.StartsAt.IsZero():
		return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "starts_at", Reason: "is required"})
	}

	var st *domain.Showtime

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		id, err := tx.Catalog().CreateShowtime(ctx, domain.Showtime{
			BranchID:       in.BranchID,
			RoomID:         in.RoomID,
			MovieID:        in.MovieID,
			BasePriceCents: in.BasePriceCents,
			StartsAt:       in.StartsAt.UTC(),
			Duration:       in.Duration,
		})
		if err != nil {
			return err
		}

		added, err := tx.Inventory().Init(ctx, id, in.RoomID)
		if err != nil {
			return err
		}
		if added == 0 {
			return &domain.ValidationError{Field: "room_id", Reason: fmt.Sprintf("room %d has no seats", in.RoomID)}
		}

		if err := tx.Catalog().AdjustShowtimeCounters(ctx, id, int(added), 0); err != nil {
			return err
		}

		if st, err = tx.Catalog().GetShowtime(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.notify.Publish(ctx, events.New(events.ShowtimeSeeded, id, time.Now().UTC()))
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("showtime created",
		slog.Int64("showtime_id", st.ID),
		slog.Int64("room_id", st.RoomID),
		slog.Int("seats", st.AvailableSeats),
	)

	return st, nil
}

// InitInventory adds inventory rows for room seats created after the showtime.
//
// Returns:
//   - int64: the number of rows added.
//   - error: domain.ErrNotFound if the showtime does not exist.
func (s *Service) InitInventory(ctx context.Context, p domain.Principal, showtimeID int64) (int64, error) {
	const op = "service.admin.InitInventory"

	if !p.CanManage() {
		return 0, fmt.Errorf("%s: %w: manager role required", op, domain.ErrForbidden)
	}

	var added int64

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repos, after func(uow.AfterCommit)) error {
		st, err := tx.Catalog().GetShowtime(ctx, showtimeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &domain.NotFoundError{Entity: "showtime", Key: fmt.Sprint(showtimeID)}
			}
			return err
		}

		if !p.CanAccessBranch(st.BranchID) {
			return fmt.Errorf("%w: branch %d is not yours", domain.ErrForbidden, st.BranchID)
		}

		if added, err = tx.Inventory().Init(ctx, st.ID, st.RoomID); err != nil {
			return err
		}

		if added > 0 {
			if err := tx.Catalog().AdjustShowtimeCounters(ctx, st.ID, int(added), 0); err != nil {
				return err
			}
			after(func(ctx context.Context) {
				s.notify.SeatsChanged(ctx, events.New(events.ShowtimeSeeded, st.ID, time.Now().UTC()))
			})
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return added, nil
}
