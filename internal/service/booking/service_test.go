package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memory.Store
	clock      *clock.Manual
	svc        *Service
	showtimeID int64
	seats      []int64
	vipSeat    int64
}

var (
	alice   = domain.Principal{UserID: 1, Username: "alice", Role: domain.RoleCustomer}
	bob     = domain.Principal{UserID: 2, Username: "bob", Role: domain.RoleCustomer}
	cashier = domain.Principal{UserID: 10, Username: "cashier", Role: domain.RoleStaff, BranchID: ptr(int64(1))}
	outside = domain.Principal{UserID: 11, Username: "other-branch", Role: domain.RoleStaff, BranchID: ptr(int64(2))}
)

func ptr[T any](v T) *T { return &v }

// newFixture seeds room 1 with five STANDARD seats in row A and one VIP seat,
// and a showtime in branch 1 starting two hours after t0 at 10.00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()

	seats := make([]domain.Seat, 0, 6)
	for i := 1; i <= 5; i++ {
		seats = append(seats, domain.Seat{Row: "A", Number: i, SeatType: "STANDARD"})
	}
	seats = append(seats, domain.Seat{Row: "V", Number: 1, SeatType: "VIP"})

	_, err := store.Catalog().CreateSeats(ctx, 1, seats)
	require.NoError(t, err)

	showtimeID, err := store.Catalog().CreateShowtime(ctx, domain.Showtime{
		BranchID:       1,
		RoomID:         1,
		MovieID:        7,
		BasePriceCents: 1000,
		StartsAt:       t0.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	added, err := store.Inventory().Init(ctx, showtimeID, 1)
	require.NoError(t, err)
	require.NoError(t, store.Catalog().AdjustShowtimeCounters(ctx, showtimeID, int(added), 0))

	room, err := store.Catalog().SeatsForRoom(ctx, 1)
	require.NoError(t, err)

	f := &fixture{store: store, clock: clock.NewManual(t0), showtimeID: showtimeID}
	for _, s := range room {
		if s.SeatType == "VIP" {
			f.vipSeat = s.ID
			continue
		}
		f.seats = append(f.seats, s.ID)
	}

	f.svc = New(store, f.clock, nil, nil, Config{HoldTTL: 15 * time.Minute})

	return f
}

func (f *fixture) create(t *testing.T, p domain.Principal, seatIDs ...int64) *domain.BookingWithTickets {
	t.Helper()

	out, err := f.svc.Create(context.Background(), p, CreateInput{
		ShowtimeID: f.showtimeID,
		SeatIDs:    seatIDs,
		Customer:   domain.Customer{Name: p.Username, Email: p.Username + "@example.com"},
	})
	require.NoError(t, err)

	return out
}

func (f *fixture) confirm(t *testing.T, p domain.Principal, b *domain.BookingWithTickets) *domain.BookingWithTickets {
	t.Helper()

	out, err := f.svc.Confirm(context.Background(), p, ConfirmInput{
		BookingID:   b.Booking.ID,
		AmountCents: b.Booking.TotalCents,
		Method:      "card",
	})
	require.NoError(t, err)

	return out
}

func (f *fixture) seatStatus(t *testing.T, seatID int64) domain.SeatStatus {
	t.Helper()

	rows, err := f.store.Inventory().List(context.Background(), f.showtimeID, false, 0, 0, f.clock.Now())
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID == seatID {
			return r.Status
		}
	}
	t.Fatalf("seat %d not in inventory", seatID)
	return ""
}

func (f *fixture) showtime(t *testing.T) *domain.Showtime {
	t.Helper()

	st, err := f.store.Catalog().GetShowtime(context.Background(), f.showtimeID)
	require.NoError(t, err)

	return st
}

func TestCreate_HoldsSeats(t *testing.T) {
	f := newFixture(t)

	out := f.create(t, alice, f.seats[1], f.seats[0])

	b := out.Booking
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, int64(2000), b.TotalCents)
	assert.Equal(t, 2, b.TicketQuantity)
	assert.Equal(t, t0.Add(15*time.Minute), b.ExpiresAt)
	assert.Equal(t, alice.UserID, b.UserID)
	assert.Contains(t, b.Reference, domain.BookingReferencePrefix)

	require.Len(t, out.Tickets, 2)
	for _, tk := range out.Tickets {
		assert.Equal(t, domain.TicketReserved, tk.Status)
		assert.Equal(t, int64(1000), tk.FinalPriceCents)
		assert.Contains(t, tk.Number, domain.TicketNumberPrefix)
		assert.Equal(t, domain.SeatReserved, f.seatStatus(t, tk.SeatID))
	}

	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[2]))
}

func TestCreate_AppliesSeatTypeMultiplier(t *testing.T) {
	f := newFixture(t)

	out := f.create(t, alice, f.vipSeat)

	require.Len(t, out.Tickets, 1)
	assert.Equal(t, int64(1500), out.Tickets[0].FinalPriceCents)
	assert.Equal(t, "VIP", out.Tickets[0].SeatType)
	assert.Equal(t, "V1", out.Tickets[0].SeatLabel)
	assert.Equal(t, int64(1500), out.Booking.TotalCents)
}

func TestCreate_RejectsTakenSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, alice, f.seats[0], f.seats[1])

	_, err := f.svc.Create(ctx, bob, CreateInput{
		ShowtimeID: f.showtimeID,
		SeatIDs:    []int64{f.seats[1], f.seats[2]},
		Customer:   domain.Customer{Name: "Bob", Email: "bob@example.com"},
	})
	require.ErrorIs(t, err, domain.ErrSeatUnavailable)

	var unavailable *domain.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []int64{f.seats[1]}, unavailable.SeatIDs)

	// The failed attempt left seat 3 untouched.
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[2]))

	f.create(t, bob, f.seats[2])
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := domain.Customer{Name: "Alice", Email: "alice@example.com"}

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{
			name: "no seats",
			in:   CreateInput{ShowtimeID: f.showtimeID, Customer: customer},
			want: domain.ErrValidation,
		},
		{
			name: "duplicate seat",
			in:   CreateInput{ShowtimeID: f.showtimeID, SeatIDs: []int64{f.seats[0], f.seats[0]}, Customer: customer},
			want: domain.ErrValidation,
		},
		{
			name: "bad email",
			in: CreateInput{
				ShowtimeID: f.showtimeID,
				SeatIDs:    []int64{f.seats[0]},
				Customer:   domain.Customer{Name: "Alice", Email: "not-an-email"},
			},
			want: domain.ErrValidation,
		},
		{
			name: "unknown showtime",
			in:   CreateInput{ShowtimeID: 999, SeatIDs: []int64{f.seats[0]}, Customer: customer},
			want: domain.ErrNotFound,
		},
		{
			name: "unknown seat",
			in:   CreateInput{ShowtimeID: f.showtimeID, SeatIDs: []int64{f.seats[0], 999}, Customer: customer},
			want: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, alice, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[0]))
}

func TestCreate_ConcurrentOverlapHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requests := [][]int64{
		{f.seats[0]},
		{f.seats[0], f.seats[1]},
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  []*domain.BookingWithTickets
		lost []error
	)

	for i, seats := range requests {
		wg.Add(1)
		go func(i int, seats []int64) {
			defer wg.Done()
			out, err := f.svc.Create(ctx, domain.Principal{UserID: int64(100 + i), Role: domain.RoleCustomer}, CreateInput{
				ShowtimeID: f.showtimeID,
				SeatIDs:    seats,
				Customer:   domain.Customer{Name: "c", Email: "c@example.com"},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lost = append(lost, err)
				return
			}
			won = append(won, out)
		}(i, seats)
	}
	wg.Wait()

	require.Len(t, won, 1)
	require.Len(t, lost, 1)
	assert.ErrorIs(t, lost[0], domain.ErrSeatUnavailable)

	counts, err := f.store.Inventory().Counts(ctx, f.showtimeID, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(len(won[0].Tickets)), counts.Reserved)
}

func TestConfirm_BooksSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.create(t, alice, f.seats[0], f.seats[1])
	f.clock.Advance(5 * time.Minute)

	out := f.confirm(t, alice, held)

	assert.Equal(t, domain.BookingConfirmed, out.Booking.Status)
	for _, tk := range out.Tickets {
		assert.Equal(t, domain.TicketConfirmed, tk.Status)
		assert.Equal(t, domain.SeatBooked, f.seatStatus(t, tk.SeatID))
	}

	st := f.showtime(t)
	assert.Equal(t, 4, st.AvailableSeats)
	assert.Equal(t, 2, st.BookedSeats)

	pay, err := f.svc.Payment(ctx, alice, held.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), pay.AmountCents)
	assert.Equal(t, "card", pay.Method)

	history, err := f.store.History().ListByTicket(ctx, out.Tickets[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ActionPaymentConfirm, history[0].Action)
	assert.Equal(t, domain.TicketReserved, history[0].OldStatus)
	assert.Equal(t, domain.TicketConfirmed, history[0].NewStatus)

	// Booked seats survive the hold deadline.
	f.clock.Advance(time.Hour)
	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, f.seats[0]))
}

func TestConfirm_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("amount too low", func(t *testing.T) {
		f := newFixture(t)
		held := f.create(t, alice, f.seats[0])

		_, err := f.svc.Confirm(ctx, alice, ConfirmInput{BookingID: held.Booking.ID, AmountCents: 999, Method: "card"})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, domain.SeatReserved, f.seatStatus(t, f.seats[0]))
	})

	t.Run("missing method", func(t *testing.T) {
		f := newFixture(t)
		held := f.create(t, alice, f.seats[0])

		_, err := f.svc.Confirm(ctx, alice, ConfirmInput{BookingID: held.Booking.ID, AmountCents: 1000})
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("hold expired", func(t *testing.T) {
		f := newFixture(t)
		held := f.create(t, alice, f.seats[0])
		f.clock.Advance(15 * time.Minute)

		_, err := f.svc.Confirm(ctx, alice, ConfirmInput{BookingID: held.Booking.ID, AmountCents: 1000, Method: "card"})
		require.ErrorIs(t, err, domain.ErrInvalidState)
		require.ErrorIs(t, err, domain.ErrHoldExpired)
	})

	t.Run("already confirmed", func(t *testing.T) {
		f := newFixture(t)
		held := f.create(t, alice, f.seats[0])
		f.confirm(t, alice, held)

		_, err := f.svc.Confirm(ctx, alice, ConfirmInput{BookingID: held.Booking.ID, AmountCents: 1000, Method: "card"})
		require.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("someone else's booking", func(t *testing.T) {
		f := newFixture(t)
		held := f.create(t, alice, f.seats[0])

		_, err := f.svc.Confirm(ctx, bob, ConfirmInput{BookingID: held.Booking.ID, AmountCents: 1000, Method: "card"})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestCancel_ReleasesEverySeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.create(t, alice, f.seats[0], f.seats[1], f.seats[2])
	f.confirm(t, alice, held)

	out, err := f.svc.Cancel(ctx, alice, held.Booking.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingCancelled, out.Booking.Status)
	require.Len(t, out.Tickets, 3)
	for _, tk := range out.Tickets {
		assert.Equal(t, domain.TicketCancelled, tk.Status)
		assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, tk.SeatID))
	}

	st := f.showtime(t)
	assert.Equal(t, 6, st.AvailableSeats)
	assert.Equal(t, 0, st.BookedSeats)

	_, err = f.svc.Cancel(ctx, alice, held.Booking.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	// The released seats can be booked again.
	f.create(t, bob, f.seats[0], f.seats[1], f.seats[2])
}

func TestCancel_PendingBooking(t *testing.T) {
	f := newFixture(t)

	held := f.create(t, alice, f.seats[0])

	out, err := f.svc.Cancel(context.Background(), cashier, held.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, out.Booking.Status)
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[0]))

	st := f.showtime(t)
	assert.Equal(t, 6, st.AvailableSeats)
}

func TestCancel_Forbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.create(t, alice, f.seats[0])

	_, err := f.svc.Cancel(ctx, bob, held.Booking.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Cancel(ctx, outside, held.Booking.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, domain.SeatReserved, f.seatStatus(t, f.seats[0]))
}

func TestExpireHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.create(t, alice, f.seats[0], f.seats[1])
	f.clock.Advance(10 * time.Minute)
	fresh := f.create(t, bob, f.seats[2])
	f.clock.Advance(6 * time.Minute)

	n, err := f.svc.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, alice, stale.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Booking.Status)
	for _, tk := range got.Tickets {
		assert.Equal(t, domain.TicketCancelled, tk.Status)

		history, err := f.store.History().ListByTicket(ctx, tk.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.ActionHoldExpired, history[0].Action)
		assert.Equal(t, domain.SystemActor, history[0].ActionBy)
	}
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[0]))

	kept, err := f.svc.Get(ctx, bob, fresh.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, kept.Booking.Status)
	assert.Equal(t, domain.SeatReserved, f.seatStatus(t, f.seats[2]))

	n, err = f.svc.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireHolds_KeepsBoxOfficeConfirmedTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.create(t, alice, f.seats[0], f.seats[1])
	_, err := f.svc.ConfirmTicket(ctx, cashier, held.Tickets[0].Number, "paid cash")
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)

	n, err := f.svc.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, alice, held.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Booking.Status)

	byNumber := map[string]domain.Ticket{}
	for _, tk := range got.Tickets {
		byNumber[tk.Number] = tk
	}
	assert.Equal(t, domain.TicketConfirmed, byNumber[held.Tickets[0].Number].Status)
	assert.Equal(t, domain.TicketCancelled, byNumber[held.Tickets[1].Number].Status)
	assert.Equal(t, domain.SeatBooked, f.seatStatus(t, held.Tickets[0].SeatID))
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, held.Tickets[1].SeatID))
}

func TestCreate_ReclaimsLapsedHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.create(t, alice, f.seats[0], f.seats[1])
	f.clock.Advance(15 * time.Minute)

	// The lapsed hold is visible as available before any sweep ran.
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[0]))

	out := f.create(t, bob, f.seats[0])
	assert.Equal(t, domain.BookingPending, out.Booking.Status)

	got, err := f.svc.Get(ctx, alice, stale.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Booking.Status)
	assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[1]))

	_, err = f.svc.Confirm(ctx, alice, ConfirmInput{BookingID: stale.Booking.ID, AmountCents: 2000, Method: "card"})
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestGetByReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held := f.create(t, alice, f.seats[0])

	got, err := f.svc.GetByReference(ctx, alice, " "+held.Booking.Reference+" ")
	require.NoError(t, err)
	assert.Equal(t, held.Booking.ID, got.Booking.ID)
	assert.Len(t, got.Tickets, 1)

	_, err = f.svc.GetByReference(ctx, bob, held.Booking.Reference)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.GetByReference(ctx, alice, "CINE-MISSING")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// codes hands out the given codes in order and then defers to next.
func codes(next func() string, given ...string) func() string {
	return func() string {
		if len(given) == 0 {
			return next()
		}
		c := given[0]
		given = given[1:]
		return c
	}
}

func TestCreate_RedrawsTakenCodes(t *testing.T) {
	t.Run("booking reference", func(t *testing.T) {
		f := newFixture(t)
		first := f.create(t, alice, f.seats[0])

		f.svc.newReference = codes(domain.NewBookingReference, first.Booking.Reference)

		second := f.create(t, bob, f.seats[1])
		assert.NotEqual(t, first.Booking.Reference, second.Booking.Reference)
		assert.Equal(t, domain.SeatReserved, f.seatStatus(t, f.seats[1]))
	})

	t.Run("ticket number", func(t *testing.T) {
		f := newFixture(t)
		first := f.create(t, alice, f.seats[0])

		f.svc.newTicketNumber = codes(domain.NewTicketNumber, first.Tickets[0].Number)

		second := f.create(t, bob, f.seats[1])
		require.Len(t, second.Tickets, 1)
		assert.NotEqual(t, first.Tickets[0].Number, second.Tickets[0].Number)
		assert.Equal(t, domain.SeatReserved, f.seatStatus(t, f.seats[1]))
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		f := newFixture(t)
		first := f.create(t, alice, f.seats[0])

		f.svc.newReference = func() string { return first.Booking.Reference }

		_, err := f.svc.Create(context.Background(), bob, CreateInput{
			ShowtimeID: f.showtimeID,
			SeatIDs:    []int64{f.seats[1]},
			Customer:   domain.Customer{Name: "bob", Email: "bob@example.com"},
		})
		require.Error(t, err)
		assert.Equal(t, domain.KindTransactionFailure, domain.KindOf(err))
		assert.NotErrorIs(t, err, domain.ErrSeatUnavailable)
		assert.Equal(t, domain.SeatAvailable, f.seatStatus(t, f.seats[1]))
	})
}
