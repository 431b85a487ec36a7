// Package events carries booking lifecycle notifications out of the process
// once the state change that produced them has committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	BookingExpired   Type = "booking.expired"
	TicketConfirmed  Type = "ticket.confirmed"
	TicketCancelled  Type = "ticket.cancelled"
	TicketCheckedIn  Type = "ticket.checked_in"
	ShowtimeSeeded   Type = "showtime.seeded"
)

type Event struct {
	ID               uuid.UUID  `json:"id"`
	Type             Type       `json:"type"`
	OccurredAt       time.Time  `json:"occurred_at"`
	ShowtimeID       int64      `json:"showtime_id"`
	BookingID        *uuid.UUID `json:"booking_id,omitempty"`
	BookingReference string     `json:"booking_reference,omitempty"`
	TicketNumber     string     `json:"ticket_number,omitempty"`
	SeatIDs          []int64    `json:"seat_ids,omitempty"`
	Actor            string     `json:"actor,omitempty"`
}

// New stamps an event with a fresh id.
func New(t Type, showtimeID int64, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: at,
		ShowtimeID: showtimeID,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an outside system. Delivery is best effort:
// callers log failures and never roll back the committed change.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
