package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
)

const (
	defaultTicketLimit = 50
	maxTicketLimit     = 200
)

// SearchTickets is the box-office lookup by ticket number, booking reference
// or customer contact. Staff bound to a branch only see that branch.
//
// Returns:
//   - error: domain.ErrForbidden unless p is staff, or when filtering on another branch.
func (s *Service) SearchTickets(ctx context.Context, p domain.Principal, f domain.TicketFilter) ([]domain.TicketRecord, error) {
	const op = "service.booking.SearchTickets"

	if err := requireStaff(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := scopeToBranch(p, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f.Term = strings.TrimSpace(f.Term)
	f.Limit, f.Offset = page(f.Limit, f.Offset)

	out, err := s.store.Tickets().Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// CustomerTickets lists a customer's tickets, latest showtime first.
// Customers always get their own tickets and email is ignored; staff name
// the customer by email and only see their branch.
func (s *Service) CustomerTickets(
	ctx context.Context,
	p domain.Principal,
	email string,
	limit, offset int,
) ([]domain.TicketRecord, error) {
	const op = "service.booking.CustomerTickets"

	var f domain.TicketFilter
	if p.IsStaff() {
		email = strings.TrimSpace(email)
		if email == "" {
			return nil, fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "customer_email", Reason: "is required"})
		}
		f.CustomerEmail = email
		if err := scopeToBranch(p, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		f.UserID = p.UserID
	}

	f.Limit, f.Offset = page(limit, offset)

	out, err := s.store.Tickets().Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Payment returns the payment recorded for a booking, subject to the same
// access rules as the booking itself.
//
// Returns:
//   - error: domain.ErrNotFound if the booking does not exist or has not been paid.
func (s *Service) Payment(ctx context.Context, p domain.Principal, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "service.booking.Payment"

	b, err := s.store.Bookings().Get(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "booking", bookingID))
	}

	if err := authorize(p, b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pay, err := s.store.Bookings().GetPayment(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, "payment for booking", bookingID))
	}

	return pay, nil
}

// scopeToBranch pins f to p's branch unless p sees every branch.
func scopeToBranch(p domain.Principal, f *domain.TicketFilter) error {
	if p.Role == domain.RoleAdmin || p.BranchID == nil {
		return nil
	}
	if f.BranchID != nil && *f.BranchID != *p.BranchID {
		return fmt.Errorf("%w: branch %d is not yours", domain.ErrForbidden, *f.BranchID)
	}
	branch := *p.BranchID
	f.BranchID = &branch
	return nil
}

func page(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultTicketLimit
	case limit > maxTicketLimit:
		limit = maxTicketLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
