package domain

import (
	"crypto/rand"
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	DefaultHoldTTL       = 15 * time.Minute
	DefaultCheckinWindow = 30 * time.Minute

	BookingReferencePrefix = "CINE-"
	TicketNumberPrefix     = "TICKET-"

	codeLength   = 8
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// CheckWindow returns nil when now lies in [startsAt-window, startsAt+window].
func CheckWindow(startsAt, now time.Time, window time.Duration) error {
	opens := startsAt.Add(-window)
	closes := startsAt.Add(window)

	if now.Before(opens) {
		return &OutsideWindowError{TooEarly: true, Minutes: roundMinutes(opens.Sub(now))}
	}
	if now.After(closes) {
		return &OutsideWindowError{TooEarly: false, Minutes: roundMinutes(now.Sub(closes))}
	}
	return nil
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

// CheckInEligible validates the ticket status part of check-in.
func CheckInEligible(status TicketStatus) error {
	switch status {
	case TicketConfirmed:
		return nil
	case TicketUsed:
		return ErrAlreadyCheckedIn
	default:
		return &StateError{Entity: "ticket", Status: string(status), Op: "check in"}
	}
}

// CanCancelTicket reports whether a single ticket may be cancelled.
func CanCancelTicket(status TicketStatus) bool {
	return status == TicketReserved || status == TicketConfirmed
}

// UnitPrice applies the seat type multiplier to the showtime base price, rounded to the cent.
func UnitPrice(baseCents int64, multiplier float64) int64 {
	if multiplier <= 0 {
		multiplier = 1
	}
	return int64(math.Round(float64(baseCents) * multiplier))
}

// NewBookingReference returns a fresh "CINE-XXXXXXXX" reference.
func NewBookingReference() string {
	return BookingReferencePrefix + randomCode()
}

// NewTicketNumber returns a fresh "TICKET-XXXXXXXX" number.
func NewTicketNumber() string {
	return TicketNumberPrefix + randomCode()
}

// QRCodeData is the payload printed on a ticket.
func QRCodeData(reference string, seatID int64) string {
	return fmt.Sprintf("QR-%s-%d", reference, seatID)
}

// randomCode draws codeLength symbols uniformly from codeAlphabet.
// Bytes at or above the largest multiple of the alphabet size are rejected
// so every symbol is equally likely.
func randomCode() string {
	const limit = 256 - 256%len(codeAlphabet)

	out := make([]byte, 0, codeLength)
	var buf [codeLength * 2]byte
	for len(out) < codeLength {
		// crypto/rand.Read never returns an error since Go 1.24.
		_, _ = rand.Read(buf[:])
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(c)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}

	return string(out)
}

// NormalizeSeatIDs validates a seat selection and returns it sorted and de-duplicated.
func NormalizeSeatIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "seat_ids", Reason: "at least one seat is required"}
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, &ValidationError{Field: "seat_ids", Reason: fmt.Sprintf("invalid seat id %d", id)}
		}
		if _, ok := seen[id]; ok {
			return nil, &ValidationError{Field: "seat_ids", Reason: fmt.Sprintf("seat %d requested twice", id)}
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
