// Package memory is an in-process Store. Transactions are serialized behind one mutex and
// applied by swapping in a mutated copy of the state, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type invKey struct {
	showtimeID int64
	seatID     int64
}

type state struct {
	seatTypes      map[string]domain.SeatType
	seats          map[int64]domain.Seat
	nextSeatID     int64
	showtimes      map[int64]domain.Showtime
	nextShowtimeID int64
	inventory      map[invKey]domain.ShowtimeSeat
	bookings       map[uuid.UUID]domain.Booking
	bookingRefs    map[string]uuid.UUID
	tickets        map[uuid.UUID]domain.Ticket
	ticketNumbers  map[string]uuid.UUID
	payments       map[uuid.UUID]domain.Payment
	history        []domain.TicketHistory
	nextHistoryID  int64
}

func newState() *state {
	return &state{
		seatTypes: map[string]domain.SeatType{
			"STANDARD": {ID: 1, Name: "STANDARD", PriceMultiplier: 1.0},
			"VIP":      {ID: 2, Name: "VIP", PriceMultiplier: 1.5},
			"COUPLE":   {ID: 3, Name: "COUPLE", PriceMultiplier: 2.0},
		},
		seats:         map[int64]domain.Seat{},
		showtimes:     map[int64]domain.Showtime{},
		inventory:     map[invKey]domain.ShowtimeSeat{},
		bookings:      map[uuid.UUID]domain.Booking{},
		bookingRefs:   map[string]uuid.UUID{},
		tickets:       map[uuid.UUID]domain.Ticket{},
		ticketNumbers: map[string]uuid.UUID{},
		payments:      map[uuid.UUID]domain.Payment{},
	}
}

func (s *state) clone() *state {
	cp := *s
	cp.seatTypes = maps.Clone(s.seatTypes)
	cp.seats = maps.Clone(s.seats)
	cp.showtimes = maps.Clone(s.showtimes)
	cp.inventory = maps.Clone(s.inventory)
	cp.bookings = maps.Clone(s.bookings)
	cp.bookingRefs = maps.Clone(s.bookingRefs)
	cp.tickets = maps.Clone(s.tickets)
	cp.ticketNumbers = maps.Clone(s.ticketNumbers)
	cp.payments = maps.Clone(s.payments)
	cp.history = append([]domain.TicketHistory(nil), s.history...)
	return &cp
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

// RunTx runs fn against a private copy of the state and publishes it only when fn succeeds.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &repos{view: fixedView{st: work}}); err != nil {
		return err
	}

	s.st = work
	return nil
}

func (s *Store) Catalog() repository.CatalogRepo     { return &CatalogRepo{view: s} }
func (s *Store) Inventory() repository.InventoryRepo { return &InventoryRepo{view: s} }
func (s *Store) Bookings() repository.BookingRepo    { return &BookingRepo{view: s} }
func (s *Store) Tickets() repository.TicketRepo      { return &TicketRepo{view: s} }
func (s *Store) History() repository.HistoryRepo     { return &HistoryRepo{view: s} }

// with runs fn under the store lock. Writes made outside RunTx apply immediately.
func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// view abstracts over "the live state under lock" and "a transaction's private copy".
type view interface {
	with(fn func(st *state) error) error
}

type fixedView struct {
	st *state
}

func (v fixedView) with(fn func(st *state) error) error {
	return fn(v.st)
}

type repos struct {
	view view
}

func (r *repos) Catalog() repository.CatalogRepo     { return &CatalogRepo{view: r.view} }
func (r *repos) Inventory() repository.InventoryRepo { return &InventoryRepo{view: r.view} }
func (r *repos) Bookings() repository.BookingRepo    { return &BookingRepo{view: r.view} }
func (r *repos) Tickets() repository.TicketRepo      { return &TicketRepo{view: r.view} }
func (r *repos) History() repository.HistoryRepo     { return &HistoryRepo{view: r.view} }
