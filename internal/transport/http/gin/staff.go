package httpgin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/cineseat/internal/service"
	"github.com/kirinyoku/cineseat/internal/service/admin"
)

// @Summary  Search tickets at the box office
// @Security BearerAuth
// @Param    q            query  string  false  "part of a ticket number, booking reference, customer name, email or phone"
// @Param    branch_id    query  int     false  "branch"
// @Param    showtime_id  query  int     false  "showtime"
// @Param    status       query  string  false  "RESERVED | CONFIRMED | USED | CANCELLED"
// @Param    limit        query  int     false  "page size"
// @Param    offset       query  int     false  "offset"
// @Success  200 {array}  domain.TicketRecord
// @Failure  400 {object} ErrorResponse
// @Failure  403 {object} ErrorResponse
// @Router   /tickets/search [get]
func handleSearchTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q TicketSearchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		out, err := svcs.Booking.SearchTickets(c.Request.Context(), principal(c), q.Filter())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Confirm one reserved ticket at the box office
// @Security BearerAuth
// @Param    number  path  string  true  "Ticket number"
// @Param    req body  TicketNoteRequest false "note"
// @Success  200 {object} domain.Ticket
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /tickets/{number}/confirm [post]
func handleConfirmTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseTicketNumber(c)
		if !ok {
			return
		}
		note, ok := bindNote(c)
		if !ok {
			return
		}
		t, err := svcs.Booking.ConfirmTicket(c.Request.Context(), principal(c), number, note)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Cancel one ticket and release its seat
// @Security BearerAuth
// @Param    number  path  string  true  "Ticket number"
// @Param    req body  TicketNoteRequest false "note"
// @Success  200 {object} domain.Ticket
// @Failure  409 {object} ErrorResponse
// @Router   /tickets/{number}/cancel [post]
func handleCancelTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseTicketNumber(c)
		if !ok {
			return
		}
		note, ok := bindNote(c)
		if !ok {
			return
		}
		t, err := svcs.Booking.CancelTicket(c.Request.Context(), principal(c), number, note)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Check in a ticket
// @Security BearerAuth
// @Param    req body  CheckInRequest true "payload"
// @Success  200 {object} domain.Ticket
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "already checked in / not confirmed"
// @Failure  422 {object} ErrorResponse "outside the check-in window"
// @Router   /checkin [post]
func handleCheckIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := svcs.Checkin.CheckIn(c.Request.Context(), principal(c), req.TicketNumber)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  List ticket history
// @Security BearerAuth
// @Param    branch_id  query  int     false "branch"
// @Param    date       query  string  false "YYYY-MM-DD"
// @Param    action_by  query  string  false "actor"
// @Param    action     query  string  false "action"
// @Param    limit      query  int     false "page size"
// @Param    offset     query  int     false "offset"
// @Success  200 {array}  domain.HistoryRecord
// @Router   /checkin/history [get]
func handleCheckinHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		out, err := svcs.Checkin.History(c.Request.Context(), principal(c), q.Filter())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Ticket details with history
// @Security BearerAuth
// @Param    number  path  string  true  "Ticket number"
// @Success  200 {object} domain.TicketDetails
// @Failure  404 {object} ErrorResponse
// @Router   /checkin/tickets/{number} [get]
func handleTicketDetails(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseTicketNumber(c)
		if !ok {
			return
		}
		out, err := svcs.Checkin.TicketDetails(c.Request.Context(), principal(c), number)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Batch create room seats
// @Security BearerAuth
// @Param    id  path  int  true  "Room ID"
// @Param    req body  BatchCreateSeatsRequest true "payload"
// @Success  201 {object} CreatedResponse
// @Router   /admin/rooms/{id}/seats [post]
func handleBatchCreateSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req BatchCreateSeatsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		seats := make([]admin.SeatInput, 0, len(req.Seats))
		for _, s := range req.Seats {
			seats = append(seats, admin.SeatInput{Row: s.Row, Number: s.Number, SeatType: s.SeatType})
		}
		n, err := svcs.Admin.BatchCreateSeats(c.Request.Context(), principal(c), roomID, seats)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreatedResponse{Created: n})
	}
}

// @Summary  Create showtime and seed its seat inventory
// @Security BearerAuth
// @Param    req body  CreateShowtimeRequest true "payload"
// @Success  201 {object} domain.Showtime
// @Failure  400 {object} ErrorResponse "room has no seats"
// @Router   /admin/showtimes [post]
func handleCreateShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateShowtimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		st, err := svcs.Admin.CreateShowtime(c.Request.Context(), principal(c), admin.ShowtimeInput{
			BranchID:       req.BranchID,
			RoomID:         req.RoomID,
			MovieID:        req.MovieID,
			BasePriceCents: req.BasePriceCents,
			StartsAt:       req.StartsAt,
			Duration:       time.Duration(req.DurationMinutes) * time.Minute,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, st)
	}
}

// @Summary  Seed inventory rows for seats added after the showtime
// @Security BearerAuth
// @Param    id  path  int  true  "Showtime ID"
// @Success  201 {object} CreatedResponse
// @Router   /admin/showtimes/{id}/inventory [post]
func handleInitInventory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		n, err := svcs.Admin.InitInventory(c.Request.Context(), principal(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreatedResponse{Created: n})
	}
}

// bindNote reads the optional note body.
func bindNote(c *gin.Context) (string, bool) {
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var req TicketNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return "", false
	}
	return req.Note, true
}
