package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type TicketRepo struct {
	view view
}

func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "memory.TicketRepo.InsertBatch"

	err := r.view.with(func(st *state) error {
		for _, t := range tickets {
			if _, ok := st.bookings[t.BookingID]; !ok {
				return repository.ErrNotFound
			}
			if _, ok := st.ticketNumbers[t.Number]; ok {
				return repository.ErrDuplicateCode
			}
			// one live ticket per showtime seat
			for _, other := range st.tickets {
				if other.Live() && other.ShowtimeID == t.ShowtimeID && other.SeatID == t.SeatID {
					return repository.ErrConflict
				}
			}
			st.tickets[t.ID] = t
			st.ticketNumbers[t.Number] = t.ID
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	var out []domain.Ticket
	_ = r.view.with(func(st *state) error {
		for _, t := range st.tickets {
			if t.BookingID == bookingID {
				out = append(out, t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Ticket) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Number, b.Number)
	})

	return out, nil
}

func (r *TicketRepo) ListByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	return r.ListByBooking(ctx, bookingID)
}

func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.GetByNumber"

	var out domain.Ticket
	err := r.view.with(func(st *state) error {
		id, ok := st.ticketNumbers[number]
		if !ok {
			return repository.ErrNotFound
		}
		out = st.tickets[id]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (r *TicketRepo) GetByNumberForUpdate(ctx context.Context, number string) (*domain.Ticket, error) {
	return r.GetByNumber(ctx, number)
}

func (r *TicketRepo) SetStatus(ctx context.Context, ids []uuid.UUID, status domain.TicketStatus, at time.Time) (int64, error) {
	var n int64
	_ = r.view.with(func(st *state) error {
		for _, id := range ids {
			t, ok := st.tickets[id]
			if !ok {
				continue
			}
			t.Status = status
			t.UpdatedAt = at
			st.tickets[id] = t
			n++
		}
		return nil
	})

	return n, nil
}

func (r *TicketRepo) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, by string) (int64, error) {
	var n int64
	_ = r.view.with(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || t.Status != domain.TicketConfirmed {
			return nil
		}
		ts := at
		t.Status = domain.TicketUsed
		t.CheckedIn = true
		t.CheckedInAt = &ts
		t.CheckedInBy = by
		t.UpdatedAt = at
		st.tickets[id] = t
		n = 1
		return nil
	})

	return n, nil
}

func (r *TicketRepo) Search(ctx context.Context, f domain.TicketFilter) ([]domain.TicketRecord, error) {
	term := strings.ToLower(strings.TrimSpace(f.Term))

	var out []domain.TicketRecord
	_ = r.view.with(func(st *state) error {
		for _, t := range st.tickets {
			b := st.bookings[t.BookingID]
			s := st.showtimes[t.ShowtimeID]

			if f.BranchID != nil && s.BranchID != *f.BranchID {
				continue
			}
			if f.ShowtimeID > 0 && t.ShowtimeID != f.ShowtimeID {
				continue
			}
			if f.Status != "" && t.Status != f.Status {
				continue
			}
			if f.UserID > 0 && b.UserID != f.UserID {
				continue
			}
			if f.CustomerEmail != "" && !strings.EqualFold(b.Customer.Email, f.CustomerEmail) {
				continue
			}
			if term != "" && !matchesTerm(term, t.Number, b.Reference, b.Customer.Name, b.Customer.Email, b.Customer.Phone) {
				continue
			}

			out = append(out, domain.TicketRecord{
				Ticket:           t,
				BookingReference: b.Reference,
				Customer:         b.Customer,
				BranchID:         s.BranchID,
				StartsAt:         s.StartsAt,
			})
		}
		return nil
	})

	slices.SortFunc(out, func(a, b domain.TicketRecord) int {
		if c := b.StartsAt.Compare(a.StartsAt); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Number, b.Number)
	})

	if f.Offset >= len(out) {
		return []domain.TicketRecord{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}

func matchesTerm(term string, fields ...string) bool {
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
