package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatBooked    SeatStatus = "BOOKED"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type TicketStatus string

const (
	TicketReserved  TicketStatus = "RESERVED"
	TicketConfirmed TicketStatus = "CONFIRMED"
	TicketUsed      TicketStatus = "USED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type HistoryAction string

const (
	ActionCheckIn        HistoryAction = "CHECK_IN"
	ActionManualConfirm  HistoryAction = "MANUAL_CONFIRM"
	ActionManualCancel   HistoryAction = "MANUAL_CANCEL"
	ActionPaymentConfirm HistoryAction = "PAYMENT_CONFIRM"
	ActionBookingCancel  HistoryAction = "BOOKING_CANCEL"
	ActionHoldExpired    HistoryAction = "HOLD_EXPIRED"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// SystemActor is recorded as action_by for transitions no person initiated.
const SystemActor = "system"

// Principal is the authenticated caller handed over by the identity layer.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	BranchID *int64 `json:"branch_id,omitempty"`
}

// IsStaff reports whether p may operate the box office (check-in, manual ticket changes).
func (p Principal) IsStaff() bool {
	switch p.Role {
	case RoleStaff, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanManage reports whether p may seed rooms and showtimes.
func (p Principal) CanManage() bool {
	return p.Role == RoleManager || p.Role == RoleAdmin
}

// CanAccessBranch reports whether p may act on data of branchID.
// Admins and principals not bound to a branch see every branch.
func (p Principal) CanAccessBranch(branchID int64) bool {
	if p.Role == RoleAdmin || p.BranchID == nil {
		return true
	}
	return *p.BranchID == branchID
}

// Actor is the name written to audit rows.
func (p Principal) Actor() string {
	if p.Username != "" {
		return p.Username
	}
	if p.UserID != 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10)
	}
	return SystemActor
}

type Showtime struct {
	ID             int64         `json:"id"`
	BranchID       int64         `json:"branch_id"`
	RoomID         int64         `json:"room_id"`
	MovieID        int64         `json:"movie_id"`
	BasePriceCents int64         `json:"base_price_cents"`
	StartsAt       time.Time     `json:"starts_at"`
	Duration       time.Duration `json:"duration"`
	AvailableSeats int           `json:"available_seats"`
	BookedSeats    int           `json:"booked_seats"`
}

type SeatType struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

type Seat struct {
	ID              int64   `json:"id"`
	RoomID          int64   `json:"room_id"`
	Row             string  `json:"row"`
	Number          int     `json:"number"`
	SeatTypeID      int64   `json:"seat_type_id"`
	SeatType        string  `json:"seat_type"`
	PriceMultiplier float64 `json:"price_multiplier"`
}

// Label is the printed seat position, e.g. "C7".
func (s Seat) Label() string {
	return s.Row + strconv.Itoa(s.Number)
}

// ShowtimeSeat is the inventory row for one seat at one showtime.
type ShowtimeSeat struct {
	ShowtimeID  int64      `json:"showtime_id"`
	SeatID      int64      `json:"seat_id"`
	Status      SeatStatus `json:"status"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

type SeatWithStatus struct {
	Seat
	Status SeatStatus `json:"status"`
}

type SeatCounts struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Booked    int64 `json:"booked"`
	Total     int64 `json:"total"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Booking struct {
	ID             uuid.UUID     `json:"id"`
	Reference      string        `json:"booking_reference"`
	ShowtimeID     int64         `json:"showtime_id"`
	BranchID       int64         `json:"branch_id"`
	UserID         int64         `json:"user_id"`
	Customer       Customer      `json:"customer"`
	TotalCents     int64         `json:"total_amount_cents"`
	TicketQuantity int           `json:"ticket_quantity"`
	Status         BookingStatus `json:"status"`
	ExpiresAt      time.Time     `json:"expires_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HoldExpired reports whether a pending booking has passed its deadline.
func (b Booking) HoldExpired(now time.Time) bool {
	return b.Status == BookingPending && !now.Before(b.ExpiresAt)
}

type Ticket struct {
	ID              uuid.UUID    `json:"id"`
	Number          string       `json:"ticket_number"`
	BookingID       uuid.UUID    `json:"booking_id"`
	ShowtimeID      int64        `json:"showtime_id"`
	SeatID          int64        `json:"seat_id"`
	SeatLabel       string       `json:"seat_label"`
	SeatType        string       `json:"seat_type"`
	UnitPriceCents  int64        `json:"unit_price_cents"`
	FinalPriceCents int64        `json:"final_price_cents"`
	QRCodeData      string       `json:"qr_code_data"`
	Status          TicketStatus `json:"status"`
	CheckedIn       bool         `json:"checked_in"`
	CheckedInAt     *time.Time   `json:"checked_in_at,omitempty"`
	CheckedInBy     string       `json:"checked_in_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Live reports whether the ticket still holds its seat.
func (t Ticket) Live() bool {
	return t.Status != TicketCancelled
}

type Payment struct {
	ID          uuid.UUID `json:"id"`
	BookingID   uuid.UUID `json:"booking_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	PaidAt      time.Time `json:"paid_at"`
}

type TicketHistory struct {
	ID        int64         `json:"id"`
	TicketID  uuid.UUID     `json:"ticket_id"`
	OldStatus TicketStatus  `json:"old_status"`
	NewStatus TicketStatus  `json:"new_status"`
	Action    HistoryAction `json:"action"`
	ActionBy  string        `json:"action_by"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// HistoryRecord is a history row joined with the ticket and showtime it refers to.
type HistoryRecord struct {
	TicketHistory
	TicketNumber string    `json:"ticket_number"`
	SeatLabel    string    `json:"seat_label"`
	ShowtimeID   int64     `json:"showtime_id"`
	BranchID     int64     `json:"branch_id"`
	StartsAt     time.Time `json:"starts_at"`
}

type HistoryFilter struct {
	BranchID *int64
	// Day selects rows created on that calendar day (UTC).
	Day      *time.Time
	ActionBy string
	Action   HistoryAction
	Limit    int
	Offset   int
}

// TicketRecord is a ticket joined with its booking and showtime.
type TicketRecord struct {
	Ticket
	BookingReference string    `json:"booking_reference"`
	Customer         Customer  `json:"customer"`
	BranchID         int64     `json:"branch_id"`
	StartsAt         time.Time `json:"starts_at"`
}

// TicketFilter selects tickets. Zero fields match everything.
type TicketFilter struct {
	// Term matches part of the ticket number, the booking reference or the
	// customer's name, email or phone, ignoring case.
	Term          string
	BranchID      *int64
	ShowtimeID    int64
	Status        TicketStatus
	UserID        int64
	CustomerEmail string
	Limit         int
	Offset        int
}

type BookingWithTickets struct {
	Booking Booking  `json:"booking"`
	Tickets []Ticket `json:"tickets"`
}

type TicketDetails struct {
	Ticket   Ticket          `json:"ticket"`
	Showtime Showtime        `json:"showtime"`
	History  []TicketHistory `json:"history"`
}
