package admin

import (
	"context"
	"testing"
	"time"

	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager = domain.Principal{UserID: 1, Username: "manager", Role: domain.RoleManager, BranchID: ptr(int64(1))}
	staff   = domain.Principal{UserID: 2, Username: "staff", Role: domain.RoleStaff, BranchID: ptr(int64(1))}
)

func ptr[T any](v T) *T { return &v }

func TestBatchCreateSeats(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, nil)
	ctx := context.Background()

	n, err := svc.BatchCreateSeats(ctx, manager, 1, []SeatInput{
		{Row: "a", Number: 1},
		{Row: "A", Number: 2, SeatType: "vip"},
		{Row: "B", Number: 1, SeatType: "COUPLE"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	seats, err := store.Catalog().SeatsForRoom(ctx, 1)
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Equal(t, "A1", seats[0].Label())
	assert.Equal(t, "STANDARD", seats[0].SeatType)
	assert.Equal(t, "VIP", seats[1].SeatType)
	assert.InDelta(t, 1.5, seats[1].PriceMultiplier, 0.0001)

	// Existing positions are skipped.
	n, err = svc.BatchCreateSeats(ctx, manager, 1, []SeatInput{{Row: "A", Number: 1}, {Row: "A", Number: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBatchCreateSeats_Rejections(t *testing.T) {
	svc := New(memory.NewStore(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		p    domain.Principal
		room int64
		in   []SeatInput
		want error
	}{
		{name: "staff", p: staff, room: 1, in: []SeatInput{{Row: "A", Number: 1}}, want: domain.ErrForbidden},
		{name: "no seats", p: manager, room: 1, want: domain.ErrValidation},
		{name: "bad room", p: manager, room: 0, in: []SeatInput{{Row: "A", Number: 1}}, want: domain.ErrValidation},
		{name: "no row", p: manager, room: 1, in: []SeatInput{{Number: 1}}, want: domain.ErrValidation},
		{name: "bad number", p: manager, room: 1, in: []SeatInput{{Row: "A"}}, want: domain.ErrValidation},
		{name: "unknown type", p: manager, room: 1, in: []SeatInput{{Row: "A", Number: 1, SeatType: "BED"}}, want: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BatchCreateSeats(ctx, tt.p, tt.room, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateShowtime(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, nil)
	ctx := context.Background()

	_, err := svc.BatchCreateSeats(ctx, manager, 3, []SeatInput{{Row: "A", Number: 1}, {Row: "A", Number: 2}})
	require.NoError(t, err)

	in := ShowtimeInput{
		BranchID:       1,
		RoomID:         3,
		MovieID:        9,
		BasePriceCents: 1200,
		StartsAt:       time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC),
		Duration:       2 * time.Hour,
	}

	st, err := svc.CreateShowtime(ctx, manager, in)
	require.NoError(t, err)
	assert.Equal(t, 2, st.AvailableSeats)
	assert.Zero(t, st.BookedSeats)

	counts, err := store.Inventory().Counts(ctx, st.ID, in.StartsAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Available)

	_, err = svc.CreateShowtime(ctx, staff, in)
	require.ErrorIs(t, err, domain.ErrForbidden)

	other := in
	other.BranchID = 2
	_, err = svc.CreateShowtime(ctx, manager, other)
	require.ErrorIs(t, err, domain.ErrForbidden)

	empty := in
	empty.RoomID = 42
	_, err = svc.CreateShowtime(ctx, manager, empty)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestInitInventory(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, nil)
	ctx := context.Background()

	_, err := svc.BatchCreateSeats(ctx, manager, 1, []SeatInput{{Row: "A", Number: 1}})
	require.NoError(t, err)

	st, err := svc.CreateShowtime(ctx, manager, ShowtimeInput{
		BranchID: 1, RoomID: 1, BasePriceCents: 1000, StartsAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.BatchCreateSeats(ctx, manager, 1, []SeatInput{{Row: "A", Number: 2}, {Row: "A", Number: 3}})
	require.NoError(t, err)

	added, err := svc.InitInventory(ctx, manager, st.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), added)

	added, err = svc.InitInventory(ctx, manager, st.ID)
	require.NoError(t, err)
	assert.Zero(t, added)

	got, err := store.Catalog().GetShowtime(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSeats)

	_, err = svc.InitInventory(ctx, manager, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
