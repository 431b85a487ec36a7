package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/service"
	"github.com/kirinyoku/cineseat/internal/service/booking"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps are the router's collaborators. Idempotency, Limiter and Seats may be nil
// when Redis is disabled.
type Deps struct {
	Services    *service.Services
	JWTSecret   string
	Idempotency idempotencyStore
	Limiter     rateLimiter
	Seats       seatStream
	Logger      *slog.Logger
}

func NewRouter(d Deps, middlewares ...gin.HandlerFunc) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}

	RegisterValidators()

	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(d.Logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	svcs := d.Services

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/showtimes/:id", handleGetShowtime(svcs))
	r.GET("/showtimes/:id/availability", handleGetAvailability(svcs))
	r.GET("/showtimes/:id/seats", handleListSeats(svcs))
	r.GET("/showtimes/:id/seats/stream", handleSeatStream(svcs, d.Seats))

	api := r.Group("", JWTAuth(d.JWTSecret))
	{
		api.POST("/showtimes/:id/bookings", RateLimit(d.Limiter, d.Logger), handleCreateBooking(svcs, d.Idempotency))
		api.GET("/bookings/:id", handleGetBooking(svcs))
		api.GET("/bookings/reference/:reference", handleGetBookingByReference(svcs))
		api.POST("/bookings/:id/cancel", handleCancelBooking(svcs))
		api.POST("/payments/confirm", handleConfirmPayment(svcs))
		api.GET("/payments/booking/:id", handleGetPayment(svcs))
		api.GET("/tickets/customer", handleCustomerTickets(svcs))
		api.GET("/tickets/:number", handleGetTicket(svcs))
	}

	staff := api.Group("", RequireRole(domain.RoleStaff, domain.RoleManager, domain.RoleAdmin))
	{
		staff.GET("/tickets/search", handleSearchTickets(svcs))
		staff.POST("/tickets/:number/confirm", handleConfirmTicket(svcs))
		staff.POST("/tickets/:number/cancel", handleCancelTicket(svcs))
		staff.POST("/checkin", handleCheckIn(svcs))
		staff.GET("/checkin/history", handleCheckinHistory(svcs))
		staff.GET("/checkin/tickets/:number", handleTicketDetails(svcs))
	}

	admin := api.Group("/admin", RequireRole(domain.RoleManager, domain.RoleAdmin))
	{
		admin.POST("/rooms/:id/seats", handleBatchCreateSeats(svcs))
		admin.POST("/showtimes", handleCreateShowtime(svcs))
		admin.POST("/showtimes/:id/inventory", handleInitInventory(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get showtime
// @Param    id  path  int  true  "Showtime ID"
// @Success  200  {object}  domain.Showtime
// @Failure  404  {object}  ErrorResponse
// @Router   /showtimes/{id} [get]
func handleGetShowtime(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		st, err := svcs.Inventory.Showtime(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, st, "public, max-age=15", true)
	}
}

// @Summary  Get availability counters
// @Param    id  path  int  true  "Showtime ID"
// @Success  200  {object}  domain.SeatCounts
// @Failure  404  {object}  ErrorResponse
// @Router   /showtimes/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Inventory.Availability(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, cnt, "public, max-age=5", true)
	}
}

// @Summary  List showtime seats
// @Param    id     path   int     true  "Showtime ID"
// @Param    only   query  string  false "available"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200  {array}   domain.SeatWithStatus
// @Failure  404  {object}  ErrorResponse
// @Router   /showtimes/{id}/seats [get]
func handleListSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var q SeatsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		seats, err := svcs.Inventory.Seats(c.Request.Context(), id, q.Only == "available", q.Limit, q.Offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=5", true)
	}
}

// @Summary  Hold seats for a new booking (idempotent)
// @Security BearerAuth
// @Param    id  path  int  true  "Showtime ID"
// @Param    Idempotency-Key header string false "replay key"
// @Param    req body  CreateBookingRequest true "payload"
// @Success  201 {object} domain.BookingWithTickets
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / idempotency key in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /showtimes/{id}/bookings [post]
func handleCreateBooking(svcs *service.Services, idem idempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		showtimeID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		p := principal(c)

		replay, ok := beginIdempotent(c, idem, "booking:"+strconv.FormatInt(showtimeID, 10)+":"+strconv.FormatInt(p.UserID, 10))
		if !ok {
			return
		}

		out, err := svcs.Booking.Create(c.Request.Context(), p, booking.CreateInput{
			ShowtimeID: showtimeID,
			SeatIDs:    req.SeatIDs,
			Customer: domain.Customer{
				Name:  req.CustomerName,
				Email: req.CustomerEmail,
				Phone: req.CustomerPhone,
			},
		})
		if err != nil {
			replay.abort(c)
			respondErr(c, err)
			return
		}

		replay.commit(c, http.StatusCreated, out)
	}
}

// @Summary  Get booking with tickets
// @Security BearerAuth
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.BookingWithTickets
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		out, err := svcs.Booking.Get(c.Request.Context(), principal(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get booking by reference
// @Security BearerAuth
// @Param    reference  path  string  true  "Booking reference, e.g. CINE-7K2Q9XAB"
// @Success  200 {object} domain.BookingWithTickets
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/reference/{reference} [get]
func handleGetBookingByReference(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Booking.GetByReference(c.Request.Context(), principal(c), c.Param("reference"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Cancel booking and release its seats
// @Security BearerAuth
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.BookingWithTickets
// @Failure  409 {object} ErrorResponse "already cancelled / ticket used"
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		out, err := svcs.Booking.Cancel(c.Request.Context(), principal(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Confirm payment for a pending booking
// @Security BearerAuth
// @Param    req body  ConfirmPaymentRequest true "payload"
// @Success  200 {object} domain.BookingWithTickets
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "not pending / hold expired"
// @Router   /payments/confirm [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			badRequestMsg(c, "invalid booking_id")
			return
		}
		out, err := svcs.Booking.Confirm(c.Request.Context(), principal(c), booking.ConfirmInput{
			BookingID:   id,
			AmountCents: req.AmountCents,
			Method:      req.PaymentMethod,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get ticket
// @Security BearerAuth
// @Param    number  path  string  true  "Ticket number"
// @Success  200 {object} domain.Ticket
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/{number} [get]
func handleGetTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, ok := parseTicketNumber(c)
		if !ok {
			return
		}
		t, err := svcs.Booking.Ticket(c.Request.Context(), principal(c), number)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Get the payment recorded for a booking
// @Security BearerAuth
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} domain.Payment
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "booking missing or not paid"
// @Router   /payments/booking/{id} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		pay, err := svcs.Booking.Payment(c.Request.Context(), principal(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, pay)
	}
}

// @Summary  List a customer's tickets
// @Description Customers get their own tickets. Staff must name the customer by email.
// @Security BearerAuth
// @Param    customer_email  query  string  false  "customer email (staff only)"
// @Param    limit           query  int     false  "page size"
// @Param    offset          query  int     false  "offset"
// @Success  200 {array}  domain.TicketRecord
// @Failure  400 {object} ErrorResponse
// @Router   /tickets/customer [get]
func handleCustomerTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q CustomerTicketsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err)
			return
		}
		out, err := svcs.Booking.CustomerTickets(c.Request.Context(), principal(c), q.CustomerEmail, q.Limit, q.Offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequestMsg(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequestMsg(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseTicketNumber(c *gin.Context) (string, bool) {
	number := strings.ToUpper(strings.TrimSpace(c.Param("number")))
	if !ticketNumberRe.MatchString(number) {
		badRequestMsg(c, "invalid ticket number")
		return "", false
	}
	return number, true
}
