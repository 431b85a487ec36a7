package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedShowtime(t *testing.T, s *Store, seats int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	in := make([]domain.Seat, seats)
	for i := range in {
		in[i] = domain.Seat{Row: "A", Number: i + 1, SeatType: "STANDARD"}
	}
	n, err := s.Catalog().CreateSeats(ctx, 1, in)
	require.NoError(t, err)
	require.Equal(t, int64(seats), n)

	id, err := s.Catalog().CreateShowtime(ctx, domain.Showtime{RoomID: 1, BranchID: 1, BasePriceCents: 1000, StartsAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	added, err := s.Inventory().Init(ctx, id, 1)
	require.NoError(t, err)
	require.Equal(t, int64(seats), added)

	room, err := s.Catalog().SeatsForRoom(ctx, 1)
	require.NoError(t, err)
	ids := make([]int64, len(room))
	for i, seat := range room {
		ids[i] = seat.ID
	}
	return id, ids
}

func TestStore_RunTx_RollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 2)

	boom := errors.New("boom")
	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		n, err := tx.Inventory().Reserve(ctx, showtimeID, seats, uuid.New(), time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	counts, err := s.Inventory().Counts(ctx, showtimeID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Available)
}

func TestStore_RunTx_Commits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 3)
	bookingID := uuid.New()
	until := time.Now().Add(time.Minute)

	err := s.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		_, err := tx.Inventory().Reserve(ctx, showtimeID, seats[:2], bookingID, until)
		return err
	})
	require.NoError(t, err)

	rows, err := s.Inventory().Lock(ctx, showtimeID, seats)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.SeatReserved, rows[0].Status)
	assert.Equal(t, bookingID, *rows[0].BookingID)
	assert.Equal(t, domain.SeatAvailable, rows[2].Status)

	// a lapsed hold reads as available
	counts, err := s.Inventory().Counts(ctx, showtimeID, until.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Available)
}

func TestInventory_ReleaseIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 1)
	bookingID := uuid.New()

	n, err := s.Inventory().Reserve(ctx, showtimeID, seats, bookingID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.Inventory().Release(ctx, showtimeID, seats, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Inventory().Release(ctx, showtimeID, seats, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestInventory_ReserveSkipsTakenSeats(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 2)

	_, err := s.Inventory().Reserve(ctx, showtimeID, seats[:1], uuid.New(), time.Now().Add(time.Minute))
	require.NoError(t, err)

	n, err := s.Inventory().Reserve(ctx, showtimeID, seats, uuid.New(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTickets_OneLiveTicketPerSeat(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 1)

	newBooking := func() uuid.UUID {
		b := &domain.Booking{ID: uuid.New(), Reference: domain.NewBookingReference(), ShowtimeID: showtimeID, Status: domain.BookingPending}
		require.NoError(t, s.Bookings().Insert(ctx, b))
		return b.ID
	}

	first := domain.Ticket{ID: uuid.New(), Number: domain.NewTicketNumber(), BookingID: newBooking(), ShowtimeID: showtimeID, SeatID: seats[0], Status: domain.TicketReserved}
	require.NoError(t, s.Tickets().InsertBatch(ctx, []domain.Ticket{first}))

	second := domain.Ticket{ID: uuid.New(), Number: domain.NewTicketNumber(), BookingID: newBooking(), ShowtimeID: showtimeID, SeatID: seats[0], Status: domain.TicketReserved}
	err := s.Tickets().InsertBatch(ctx, []domain.Ticket{second})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Tickets().SetStatus(ctx, []uuid.UUID{first.ID}, domain.TicketCancelled, time.Now())
	require.NoError(t, err)
	assert.NoError(t, s.Tickets().InsertBatch(ctx, []domain.Ticket{second}))
}

func TestGeneratedCodesCollideAsDuplicateCode(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	showtimeID, seats := seedShowtime(t, s, 2)

	b := &domain.Booking{ID: uuid.New(), Reference: "CINE-AAAA0001", ShowtimeID: showtimeID, Status: domain.BookingPending}
	require.NoError(t, s.Bookings().Insert(ctx, b))

	err := s.Bookings().Insert(ctx, &domain.Booking{ID: uuid.New(), Reference: b.Reference, ShowtimeID: showtimeID})
	assert.ErrorIs(t, err, repository.ErrDuplicateCode)
	assert.NotErrorIs(t, err, repository.ErrConflict)

	tk := domain.Ticket{ID: uuid.New(), Number: "TICKET-AAAA0001", BookingID: b.ID, ShowtimeID: showtimeID, SeatID: seats[0], Status: domain.TicketReserved}
	require.NoError(t, s.Tickets().InsertBatch(ctx, []domain.Ticket{tk}))

	dup := domain.Ticket{ID: uuid.New(), Number: tk.Number, BookingID: b.ID, ShowtimeID: showtimeID, SeatID: seats[1], Status: domain.TicketReserved}
	err = s.Tickets().InsertBatch(ctx, []domain.Ticket{dup})
	assert.ErrorIs(t, err, repository.ErrDuplicateCode)
	assert.NotErrorIs(t, err, repository.ErrConflict)
}

func TestBookings_ListExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	old := &domain.Booking{ID: uuid.New(), Reference: "CINE-OLD00001", Status: domain.BookingPending, ExpiresAt: now.Add(-2 * time.Minute)}
	older := &domain.Booking{ID: uuid.New(), Reference: "CINE-OLD00002", Status: domain.BookingPending, ExpiresAt: now.Add(-5 * time.Minute)}
	fresh := &domain.Booking{ID: uuid.New(), Reference: "CINE-NEW00001", Status: domain.BookingPending, ExpiresAt: now.Add(5 * time.Minute)}
	paid := &domain.Booking{ID: uuid.New(), Reference: "CINE-PAID0001", Status: domain.BookingConfirmed, ExpiresAt: now.Add(-5 * time.Minute)}
	for _, b := range []*domain.Booking{old, older, fresh, paid} {
		require.NoError(t, s.Bookings().Insert(ctx, b))
	}

	ids, err := s.Bookings().ListExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older.ID, old.ID}, ids)

	ids, err = s.Bookings().ListExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{older.ID}, ids)
}
