package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
)

// CatalogRepo reads the showtime and seat layout data the booking core depends on.
type CatalogRepo interface {
	GetShowtime(ctx context.Context, id int64) (*domain.Showtime, error)
	CreateShowtime(ctx context.Context, st domain.Showtime) (int64, error)
	// AdjustShowtimeCounters applies deltas to available_seats and booked_seats.
	AdjustShowtimeCounters(ctx context.Context, showtimeID int64, availableDelta, bookedDelta int) error
	SeatTypes(ctx context.Context) ([]domain.SeatType, error)
	SeatsByIDs(ctx context.Context, roomID int64, seatIDs []int64) ([]domain.Seat, error)
	SeatsForRoom(ctx context.Context, roomID int64) ([]domain.Seat, error)
	// CreateSeats inserts seats resolving SeatType by name; existing (room,row,number) are skipped.
	CreateSeats(ctx context.Context, roomID int64, seats []domain.Seat) (int64, error)
}

// InventoryRepo owns the per-showtime seat ledger. All seat-id arguments are sets.
type InventoryRepo interface {
	// Init creates one AVAILABLE row per room seat missing from the showtime and returns how many were added.
	Init(ctx context.Context, showtimeID, roomID int64) (int64, error)
	// Lock returns the rows for seatIDs ordered by seat id, holding a write lock until the transaction ends.
	Lock(ctx context.Context, showtimeID int64, seatIDs []int64) ([]domain.ShowtimeSeat, error)
	// Reserve claims AVAILABLE rows for bookingID and returns how many rows changed.
	Reserve(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID, until time.Time) (int64, error)
	// Book flips rows held by bookingID to BOOKED and returns how many rows changed.
	Book(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error)
	// Release returns rows held by bookingID to AVAILABLE. Rows not held by bookingID are left alone.
	Release(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error)
	List(ctx context.Context, showtimeID int64, onlyAvailable bool, limit, offset int, now time.Time) ([]domain.SeatWithStatus, error)
	Counts(ctx context.Context, showtimeID int64, now time.Time) (*domain.SeatCounts, error)
}

type BookingRepo interface {
	Insert(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error
	// ListExpired returns PENDING bookings whose hold deadline is at or before now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	InsertPayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error)
}

type TicketRepo interface {
	InsertBatch(ctx context.Context, tickets []domain.Ticket) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error)
	ListByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	GetByNumberForUpdate(ctx context.Context, number string) (*domain.Ticket, error)
	SetStatus(ctx context.Context, ids []uuid.UUID, status domain.TicketStatus, at time.Time) (int64, error)
	// MarkUsed flips a CONFIRMED ticket to USED; it returns 0 when the ticket was not CONFIRMED.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, by string) (int64, error)
	// Search returns matching tickets, latest showtime first.
	Search(ctx context.Context, f domain.TicketFilter) ([]domain.TicketRecord, error)
}

// HistoryRepo is the append-only ticket audit log.
type HistoryRepo interface {
	Append(ctx context.Context, entries ...domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.TicketHistory, error)
	List(ctx context.Context, f domain.HistoryFilter) ([]domain.HistoryRecord, error)
}

type Repos interface {
	Catalog() CatalogRepo
	Inventory() InventoryRepo
	Bookings() BookingRepo
	Tickets() TicketRepo
	History() HistoryRepo
}

// Store hands out repositories bound either to the shared pool or to one transaction.
type Store interface {
	Repos
	// RunTx executes fn in one transaction; fn's error rolls everything back.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}
