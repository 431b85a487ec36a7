package httpgin

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type CreateBookingRequest struct {
	SeatIDs       []int64 `json:"seat_ids" binding:"required,min=1,max=20,dive,gt=0"`
	CustomerName  string  `json:"customer_name" binding:"required,max=100"`
	CustomerEmail string  `json:"customer_email" binding:"required,email"`
	CustomerPhone string  `json:"customer_phone" binding:"omitempty,max=32"`
}

type ConfirmPaymentRequest struct {
	BookingID     string `json:"booking_id" binding:"required,uuid"`
	AmountCents   int64  `json:"amount_cents" binding:"gte=0"`
	PaymentMethod string `json:"payment_method" binding:"required,max=32"`
}

type CheckInRequest struct {
	TicketNumber string `json:"ticket_number" binding:"required,ticketnumber"`
}

type TicketNoteRequest struct {
	Note string `json:"note" binding:"max=255"`
}

type SeatsQuery struct {
	Only   string `form:"only" binding:"omitempty,oneof=available all"`
	Limit  int    `form:"limit" binding:"omitempty,gte=0"`
	Offset int    `form:"offset" binding:"omitempty,gte=0"`
}

type HistoryQuery struct {
	BranchID int64  `form:"branch_id" binding:"omitempty,gt=0"`
	Date     string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	ActionBy string `form:"action_by" binding:"omitempty,max=100"`
	Action   string `form:"action" binding:"omitempty,oneof=CHECK_IN MANUAL_CONFIRM MANUAL_CANCEL PAYMENT_CONFIRM BOOKING_CANCEL HOLD_EXPIRED"`
	Limit    int    `form:"limit" binding:"omitempty,gte=0"`
	Offset   int    `form:"offset" binding:"omitempty,gte=0"`
}

// Filter converts the query into a history filter. Date was validated by binding.
func (q HistoryQuery) Filter() domain.HistoryFilter {
	f := domain.HistoryFilter{
		ActionBy: q.ActionBy,
		Action:   domain.HistoryAction(q.Action),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.BranchID > 0 {
		branch := q.BranchID
		f.BranchID = &branch
	}
	if q.Date != "" {
		if day, err := time.Parse(time.DateOnly, q.Date); err == nil {
			f.Day = &day
		}
	}
	return f
}

type TicketSearchQuery struct {
	Query      string `form:"q" binding:"omitempty,max=100"`
	BranchID   int64  `form:"branch_id" binding:"omitempty,gt=0"`
	ShowtimeID int64  `form:"showtime_id" binding:"omitempty,gt=0"`
	Status     string `form:"status" binding:"omitempty,oneof=RESERVED CONFIRMED USED CANCELLED"`
	Limit      int    `form:"limit" binding:"omitempty,gte=0"`
	Offset     int    `form:"offset" binding:"omitempty,gte=0"`
}

func (q TicketSearchQuery) Filter() domain.TicketFilter {
	f := domain.TicketFilter{
		Term:       q.Query,
		ShowtimeID: q.ShowtimeID,
		Status:     domain.TicketStatus(q.Status),
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.BranchID > 0 {
		branch := q.BranchID
		f.BranchID = &branch
	}
	return f
}

type CustomerTicketsQuery struct {
	CustomerEmail string `form:"customer_email" binding:"omitempty,email"`
	Limit         int    `form:"limit" binding:"omitempty,gte=0"`
	Offset        int    `form:"offset" binding:"omitempty,gte=0"`
}

type BatchCreateSeatsRequest struct {
	Seats []SeatInput `json:"seats" binding:"required,min=1,max=1000,dive"`
}

type SeatInput struct {
	Row      string `json:"row" binding:"required,max=4"`
	Number   int    `json:"number" binding:"required,gt=0"`
	SeatType string `json:"seat_type" binding:"omitempty,max=32"`
}

type CreateShowtimeRequest struct {
	BranchID        int64     `json:"branch_id" binding:"required,gt=0"`
	RoomID          int64     `json:"room_id" binding:"required,gt=0"`
	MovieID         int64     `json:"movie_id" binding:"required,gt=0"`
	BasePriceCents  int64     `json:"base_price_cents" binding:"gte=0"`
	StartsAt        time.Time `json:"starts_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,gt=0"`
}

type CreatedResponse struct {
	Created int64 `json:"created"`
}

// ticketNumberRe accepts any well-formed number token; unknown numbers are left to the lookup.
var ticketNumberRe = regexp.MustCompile(`^[0-9A-Z][0-9A-Z-]{0,63}$`)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("ticketnumber", func(fl validator.FieldLevel) bool {
			return ticketNumberRe.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
		})
	})
}
