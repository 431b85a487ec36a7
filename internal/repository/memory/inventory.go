package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type InventoryRepo struct {
	view view
}

func (r *InventoryRepo) Init(ctx context.Context, showtimeID, roomID int64) (int64, error) {
	const op = "memory.InventoryRepo.Init"

	var added int64
	err := r.view.with(func(st *state) error {
		if _, ok := st.showtimes[showtimeID]; !ok {
			return repository.ErrNotFound
		}
		for _, s := range roomSeats(st, roomID) {
			k := invKey{showtimeID: showtimeID, seatID: s.ID}
			if _, ok := st.inventory[k]; ok {
				continue
			}
			st.inventory[k] = domain.ShowtimeSeat{
				ShowtimeID: showtimeID,
				SeatID:     s.ID,
				Status:     domain.SeatAvailable,
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return added, nil
}

func (r *InventoryRepo) Lock(ctx context.Context, showtimeID int64, seatIDs []int64) ([]domain.ShowtimeSeat, error) {
	var out []domain.ShowtimeSeat
	_ = r.view.with(func(st *state) error {
		for _, id := range seatIDs {
			if row, ok := st.inventory[invKey{showtimeID: showtimeID, seatID: id}]; ok {
				out = append(out, row)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.ShowtimeSeat) int { return cmp.Compare(a.SeatID, b.SeatID) })

	return out, nil
}

func (r *InventoryRepo) Reserve(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64,
	bookingID uuid.UUID,
	until time.Time,
) (int64, error) {
	return r.update(showtimeID, seatIDs, func(row domain.ShowtimeSeat) (domain.ShowtimeSeat, bool) {
		if row.Status != domain.SeatAvailable {
			return row, false
		}
		id, u := bookingID, until
		row.Status = domain.SeatReserved
		row.BookingID = &id
		row.LockedUntil = &u
		return row, true
	})
}

func (r *InventoryRepo) Book(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error) {
	return r.update(showtimeID, seatIDs, func(row domain.ShowtimeSeat) (domain.ShowtimeSeat, bool) {
		if row.BookingID == nil || *row.BookingID != bookingID || row.Status == domain.SeatAvailable {
			return row, false
		}
		row.Status = domain.SeatBooked
		row.LockedUntil = nil
		return row, true
	})
}

func (r *InventoryRepo) Release(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error) {
	return r.update(showtimeID, seatIDs, func(row domain.ShowtimeSeat) (domain.ShowtimeSeat, bool) {
		if row.BookingID == nil || *row.BookingID != bookingID {
			return row, false
		}
		row.Status = domain.SeatAvailable
		row.BookingID = nil
		row.LockedUntil = nil
		return row, true
	})
}

func (r *InventoryRepo) update(
	showtimeID int64,
	seatIDs []int64,
	fn func(row domain.ShowtimeSeat) (domain.ShowtimeSeat, bool),
) (int64, error) {
	var n int64
	_ = r.view.with(func(st *state) error {
		for _, id := range seatIDs {
			k := invKey{showtimeID: showtimeID, seatID: id}
			row, ok := st.inventory[k]
			if !ok {
				continue
			}
			if next, changed := fn(row); changed {
				st.inventory[k] = next
				n++
			}
		}
		return nil
	})

	return n, nil
}

func (r *InventoryRepo) List(
	ctx context.Context,
	showtimeID int64,
	onlyAvailable bool,
	limit, offset int,
	now time.Time,
) ([]domain.SeatWithStatus, error) {
	const op = "memory.InventoryRepo.List"

	var out []domain.SeatWithStatus
	err := r.view.with(func(st *state) error {
		if _, ok := st.showtimes[showtimeID]; !ok {
			return repository.ErrNotFound
		}
		for k, row := range st.inventory {
			if k.showtimeID != showtimeID {
				continue
			}
			status := effectiveStatus(row, now)
			if onlyAvailable && status != domain.SeatAvailable {
				continue
			}
			out = append(out, domain.SeatWithStatus{Seat: st.seats[k.seatID], Status: status})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slices.SortFunc(out, func(a, b domain.SeatWithStatus) int { return cmp.Compare(a.ID, b.ID) })

	if offset >= len(out) {
		return []domain.SeatWithStatus{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out, nil
}

func (r *InventoryRepo) Counts(ctx context.Context, showtimeID int64, now time.Time) (*domain.SeatCounts, error) {
	const op = "memory.InventoryRepo.Counts"

	var c domain.SeatCounts
	err := r.view.with(func(st *state) error {
		if _, ok := st.showtimes[showtimeID]; !ok {
			return repository.ErrNotFound
		}
		for k, row := range st.inventory {
			if k.showtimeID != showtimeID {
				continue
			}
			switch effectiveStatus(row, now) {
			case domain.SeatAvailable:
				c.Available++
			case domain.SeatReserved:
				c.Reserved++
			case domain.SeatBooked:
				c.Booked++
			}
			c.Total++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &c, nil
}

// effectiveStatus reports a lapsed hold as AVAILABLE.
func effectiveStatus(row domain.ShowtimeSeat, now time.Time) domain.SeatStatus {
	if row.Status == domain.SeatReserved && row.LockedUntil != nil && !now.Before(*row.LockedUntil) {
		return domain.SeatAvailable
	}
	return row.Status
}
