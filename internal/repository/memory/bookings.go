package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type BookingRepo struct {
	view view
}

func (r *BookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	const op = "memory.BookingRepo.Insert"

	err := r.view.with(func(st *state) error {
		if _, ok := st.bookings[b.ID]; ok {
			return repository.ErrConflict
		}
		if _, ok := st.bookingRefs[b.Reference]; ok {
			return repository.ErrDuplicateCode
		}
		st.bookings[b.ID] = *b
		st.bookingRefs[b.Reference] = b.ID
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "memory.BookingRepo.Get"

	var out domain.Booking
	err := r.view.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return r.Get(ctx, id)
}

func (r *BookingRepo) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	const op = "memory.BookingRepo.GetByReference"

	var out domain.Booking
	err := r.view.with(func(st *state) error {
		id, ok := st.bookingRefs[reference]
		if !ok {
			return repository.ErrNotFound
		}
		out = st.bookings[id]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

func (r *BookingRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error {
	const op = "memory.BookingRepo.SetStatus"

	err := r.view.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		b.Status = status
		b.UpdatedAt = at
		st.bookings[id] = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *BookingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var expired []domain.Booking
	_ = r.view.with(func(st *state) error {
		for _, b := range st.bookings {
			if b.HoldExpired(now) {
				expired = append(expired, b)
			}
		}
		return nil
	})

	slices.SortFunc(expired, func(a, b domain.Booking) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	out := make([]uuid.UUID, len(expired))
	for i, b := range expired {
		out[i] = b.ID
	}

	return out, nil
}

func (r *BookingRepo) InsertPayment(ctx context.Context, p *domain.Payment) error {
	const op = "memory.BookingRepo.InsertPayment"

	err := r.view.with(func(st *state) error {
		if _, ok := st.bookings[p.BookingID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.payments[p.BookingID]; ok {
			return repository.ErrConflict
		}
		st.payments[p.BookingID] = *p
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *BookingRepo) GetPayment(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "memory.BookingRepo.GetPayment"

	var out domain.Payment
	err := r.view.with(func(st *state) error {
		p, ok := st.payments[bookingID]
		if !ok {
			return repository.ErrNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}
