package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type CatalogRepo struct {
	view view
}

func (r *CatalogRepo) GetShowtime(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "memory.CatalogRepo.GetShowtime"

	var out domain.Showtime
	err := r.view.with(func(st *state) error {
		s, ok := st.showtimes[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (r *CatalogRepo) CreateShowtime(ctx context.Context, s domain.Showtime) (int64, error) {
	var id int64
	_ = r.view.with(func(st *state) error {
		st.nextShowtimeID++
		id = st.nextShowtimeID
		s.ID = id
		st.showtimes[id] = s
		return nil
	})

	return id, nil
}

func (r *CatalogRepo) AdjustShowtimeCounters(ctx context.Context, showtimeID int64, availableDelta, bookedDelta int) error {
	const op = "memory.CatalogRepo.AdjustShowtimeCounters"

	err := r.view.with(func(st *state) error {
		s, ok := st.showtimes[showtimeID]
		if !ok {
			return repository.ErrNotFound
		}
		s.AvailableSeats += availableDelta
		s.BookedSeats += bookedDelta
		if s.AvailableSeats < 0 || s.BookedSeats < 0 {
			return fmt.Errorf("negative seat counter: %w", repository.ErrConflict)
		}
		st.showtimes[showtimeID] = s
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *CatalogRepo) SeatTypes(ctx context.Context) ([]domain.SeatType, error) {
	var out []domain.SeatType
	_ = r.view.with(func(st *state) error {
		for _, t := range st.seatTypes {
			out = append(out, t)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.SeatType) int { return cmp.Compare(a.ID, b.ID) })

	return out, nil
}

func (r *CatalogRepo) SeatsByIDs(ctx context.Context, roomID int64, seatIDs []int64) ([]domain.Seat, error) {
	var out []domain.Seat
	_ = r.view.with(func(st *state) error {
		for _, id := range seatIDs {
			if s, ok := st.seats[id]; ok && s.RoomID == roomID {
				out = append(out, s)
			}
		}
		return nil
	})
	sortSeats(out)

	return out, nil
}

func (r *CatalogRepo) SeatsForRoom(ctx context.Context, roomID int64) ([]domain.Seat, error) {
	var out []domain.Seat
	_ = r.view.with(func(st *state) error {
		out = roomSeats(st, roomID)
		return nil
	})

	return out, nil
}

func (r *CatalogRepo) CreateSeats(ctx context.Context, roomID int64, seats []domain.Seat) (int64, error) {
	const op = "memory.CatalogRepo.CreateSeats"

	var created int64
	err := r.view.with(func(st *state) error {
		taken := map[string]bool{}
		for _, s := range st.seats {
			if s.RoomID == roomID {
				taken[s.Label()] = true
			}
		}

		for _, s := range seats {
			t, ok := st.seatTypes[s.SeatType]
			if !ok {
				return fmt.Errorf("unknown seat type %q: %w", s.SeatType, repository.ErrNotFound)
			}
			if taken[s.Label()] {
				continue
			}
			st.nextSeatID++
			s.ID = st.nextSeatID
			s.RoomID = roomID
			s.SeatTypeID = t.ID
			s.PriceMultiplier = t.PriceMultiplier
			st.seats[s.ID] = s
			taken[s.Label()] = true
			created++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func roomSeats(st *state, roomID int64) []domain.Seat {
	var out []domain.Seat
	for _, s := range st.seats {
		if s.RoomID == roomID {
			out = append(out, s)
		}
	}
	sortSeats(out)
	return out
}

func sortSeats(s []domain.Seat) {
	slices.SortFunc(s, func(a, b domain.Seat) int { return cmp.Compare(a.ID, b.ID) })
}
