package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSeatUnavailable    = errors.New("seat unavailable")
	ErrInvalidState       = errors.New("invalid state")
	ErrOutsideWindow      = errors.New("outside check-in window")
	ErrAlreadyCheckedIn   = errors.New("ticket already checked in")
	ErrTransactionFailure = errors.New("transaction failure")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")

	ErrAlreadyCancelled = fmt.Errorf("booking already cancelled: %w", ErrInvalidState)
	ErrHoldExpired      = fmt.Errorf("booking hold expired: %w", ErrInvalidState)
)

// Kind is the caller-facing error category.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindSeatUnavailable    Kind = "seat_unavailable"
	KindInvalidState       Kind = "invalid_state"
	KindOutsideWindow      Kind = "outside_window"
	KindAlreadyCheckedIn   Kind = "already_checked_in"
	KindTransactionFailure Kind = "transaction_failure"
	KindValidation         Kind = "validation"
	KindForbidden          Kind = "forbidden"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyCheckedIn):
		return KindAlreadyCheckedIn
	case errors.Is(err, ErrOutsideWindow):
		return KindOutsideWindow
	case errors.Is(err, ErrSeatUnavailable):
		return KindSeatUnavailable
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrTransactionFailure):
		return KindTransactionFailure
	default:
		return KindInternal
	}
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SeatsUnavailableError lists the requested seats that could not be claimed.
type SeatsUnavailableError struct {
	SeatIDs []int64
}

func (e *SeatsUnavailableError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("seats unavailable: %s", strings.Join(ids, ","))
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }

// StateError reports a transition attempted from a state that does not permit it.
type StateError struct {
	Entity string
	Status string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Op, e.Entity, e.Status)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// OutsideWindowError carries the direction and distance from the check-in window.
// Minutes is the time until the window opens when TooEarly, otherwise the time since it closed.
type OutsideWindowError struct {
	TooEarly bool
	Minutes  int
}

func (e *OutsideWindowError) Error() string {
	if e.TooEarly {
		return fmt.Sprintf("check-in has not opened yet, come back in %d minutes", e.Minutes)
	}
	return fmt.Sprintf("check-in window closed %d minutes ago", e.Minutes)
}

func (e *OutsideWindowError) Is(target error) bool { return target == ErrOutsideWindow }

// Direction is "too_early" or "too_late".
func (e *OutsideWindowError) Direction() string {
	if e.TooEarly {
		return "too_early"
	}
	return "too_late"
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
