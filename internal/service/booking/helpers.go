package booking

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
)

// notFound turns a storage miss into a domain.NotFoundError for entity.
func notFound(err error, entity string, key any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
	}
	return err
}

// authorize lets customers touch only their own bookings and staff only their branch.
func authorize(p domain.Principal, b *domain.Booking) error {
	if p.IsStaff() {
		if !p.CanAccessBranch(b.BranchID) {
			return fmt.Errorf("%w: booking belongs to another branch", domain.ErrForbidden)
		}
		return nil
	}

	if b.UserID != p.UserID {
		return fmt.Errorf("%w: booking belongs to another user", domain.ErrForbidden)
	}

	return nil
}

func requireStaff(p domain.Principal) error {
	if !p.IsStaff() {
		return fmt.Errorf("%w: staff role required", domain.ErrForbidden)
	}
	return nil
}

// staleHolders returns the bookings holding rows whose hold has lapsed, without duplicates.
func staleHolders(rows []domain.ShowtimeSeat, now time.Time) []uuid.UUID {
	var out []uuid.UUID
	for _, r := range rows {
		if r.Status != domain.SeatReserved || r.BookingID == nil || r.LockedUntil == nil {
			continue
		}
		if now.Before(*r.LockedUntil) {
			continue
		}
		if !slices.Contains(out, *r.BookingID) {
			out = append(out, *r.BookingID)
		}
	}
	return out
}

func withStatus(tickets []domain.Ticket, status domain.TicketStatus) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range tickets {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func liveTickets(tickets []domain.Ticket) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range tickets {
		if t.Live() {
			out = append(out, t)
		}
	}
	return out
}

func seatsOf(tickets []domain.Ticket) []int64 {
	out := make([]int64, len(tickets))
	for i, t := range tickets {
		out[i] = t.SeatID
	}
	slices.Sort(out)
	return out
}

func idsOf(tickets []domain.Ticket) []uuid.UUID {
	out := make([]uuid.UUID, len(tickets))
	for i, t := range tickets {
		out[i] = t.ID
	}
	return out
}

func seatIDsOf(seats []domain.Seat) []int64 {
	out := make([]int64, len(seats))
	for i, s := range seats {
		out[i] = s.ID
	}
	return out
}

// missing names the first requested id absent from found.
func missing(requested, found []int64) string {
	for _, id := range requested {
		if !slices.Contains(found, id) {
			return strconv.FormatInt(id, 10)
		}
	}
	return ""
}

// applyStatus returns all with the tickets in changed moved to status.
func applyStatus(all, changed []domain.Ticket, status domain.TicketStatus, at time.Time) []domain.Ticket {
	out := slices.Clone(all)
	for i := range out {
		for _, c := range changed {
			if out[i].ID == c.ID {
				out[i].Status = status
				out[i].UpdatedAt = at
			}
		}
	}
	return out
}

func historyFor(
	tickets []domain.Ticket,
	to domain.TicketStatus,
	action domain.HistoryAction,
	by, note string,
	at time.Time,
) []domain.TicketHistory {
	out := make([]domain.TicketHistory, len(tickets))
	for i, t := range tickets {
		out[i] = domain.TicketHistory{
			TicketID:  t.ID,
			OldStatus: t.Status,
			NewStatus: to,
			Action:    action,
			ActionBy:  by,
			Note:      note,
			CreatedAt: at,
		}
	}
	return out
}

func bookingEvent(t events.Type, b domain.Booking, seatIDs []int64, actor string, at time.Time) events.Event {
	e := events.New(t, b.ShowtimeID, at)
	id := b.ID
	e.BookingID = &id
	e.BookingReference = b.Reference
	e.SeatIDs = seatIDs
	e.Actor = actor
	return e
}

func ticketEvent(t events.Type, b domain.Booking, tk domain.Ticket, actor string, at time.Time) events.Event {
	e := bookingEvent(t, b, []int64{tk.SeatID}, actor, at)
	e.TicketNumber = tk.Number
	return e
}
