package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type HistoryRepo struct {
	view view
}

func (r *HistoryRepo) Append(ctx context.Context, entries ...domain.TicketHistory) error {
	const op = "memory.HistoryRepo.Append"

	err := r.view.with(func(st *state) error {
		for _, e := range entries {
			if _, ok := st.tickets[e.TicketID]; !ok {
				return repository.ErrNotFound
			}
			st.nextHistoryID++
			e.ID = st.nextHistoryID
			st.history = append(st.history, e)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *HistoryRepo) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	_ = r.view.with(func(st *state) error {
		for _, h := range st.history {
			if h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		return nil
	})
	slices.Reverse(out)

	return out, nil
}

func (r *HistoryRepo) List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryRecord, error) {
	var out []domain.HistoryRecord
	_ = r.view.with(func(st *state) error {
		for i := len(st.history) - 1; i >= 0; i-- {
			h := st.history[i]
			if f.Action != "" && h.Action != f.Action {
				continue
			}
			if f.ActionBy != "" && h.ActionBy != f.ActionBy {
				continue
			}
			if f.Day != nil {
				y1, m1, d1 := h.CreatedAt.UTC().Date()
				y2, m2, d2 := f.Day.UTC().Date()
				if y1 != y2 || m1 != m2 || d1 != d2 {
					continue
				}
			}
			t := st.tickets[h.TicketID]
			s := st.showtimes[t.ShowtimeID]
			if f.BranchID != nil && s.BranchID != *f.BranchID {
				continue
			}
			out = append(out, domain.HistoryRecord{
				TicketHistory: h,
				TicketNumber:  t.Number,
				SeatLabel:     t.SeatLabel,
				ShowtimeID:    s.ID,
				BranchID:      s.BranchID,
				StartsAt:      s.StartsAt,
			})
		}
		return nil
	})

	if f.Offset >= len(out) {
		return []domain.HistoryRecord{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}

	return out, nil
}
