package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository/memory"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
	"github.com/kirinyoku/cineseat/internal/service"
	"github.com/kirinyoku/cineseat/internal/service/admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var (
	now      = time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	customer = domain.Principal{UserID: 1, Username: "alice", Role: domain.RoleCustomer}
	usher    = domain.Principal{UserID: 2, Username: "usher", Role: domain.RoleStaff, BranchID: ptr(int64(1))}
	manager  = domain.Principal{UserID: 3, Username: "manager", Role: domain.RoleManager, BranchID: ptr(int64(1))}
)

func ptr[T any](v T) *T { return &v }

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router     *gin.Engine
	clock      *clock.Manual
	showtimeID int64
	seats      []int64
}

type envOption func(*Deps)

// newEnv seeds four seats in room 1 and a branch 1 showtime starting 20 minutes after now.
func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	clk := clock.NewManual(now)
	svcs := service.NewServices(store, nil, nil, clk, nil, service.Config{})

	_, err := svcs.Admin.BatchCreateSeats(ctx, manager, 1, []admin.SeatInput{
		{Row: "A", Number: 1}, {Row: "A", Number: 2}, {Row: "A", Number: 3}, {Row: "A", Number: 4},
	})
	require.NoError(t, err)

	st, err := svcs.Admin.CreateShowtime(ctx, manager, admin.ShowtimeInput{
		BranchID: 1, RoomID: 1, MovieID: 1, BasePriceCents: 1000, StartsAt: now.Add(20 * time.Minute),
	})
	require.NoError(t, err)

	room, err := store.Catalog().SeatsForRoom(ctx, 1)
	require.NoError(t, err)

	d := Deps{Services: svcs, JWTSecret: testSecret}
	for _, o := range opts {
		o(&d)
	}

	e := &env{router: NewRouter(d), clock: clk, showtimeID: st.ID}
	for _, s := range room {
		e.seats = append(e.seats, s.ID)
	}

	return e
}

func (e *env) do(t *testing.T, method, path string, p *domain.Principal, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		tok, err := IssueToken(testSecret, *p, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) path(format string) string {
	return strings.ReplaceAll(format, ":id", strconv.FormatInt(e.showtimeID, 10))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *env) createBooking(t *testing.T, seats ...int64) domain.BookingWithTickets {
	t.Helper()

	w := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, CreateBookingRequest{
		SeatIDs:       seats,
		CustomerName:  "Alice",
		CustomerEmail: "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode[domain.BookingWithTickets](t, w)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth(t *testing.T) {
	e := newEnv(t)
	body := CreateBookingRequest{SeatIDs: []int64{e.seats[0]}, CustomerName: "A", CustomerEmail: "a@example.com"}

	w := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), nil, body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), nil, body, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := IssueToken("other-secret", customer, time.Hour)
	require.NoError(t, err)
	w = e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), nil, body, "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/checkin", &customer, CheckInRequest{TicketNumber: "TICKET-AAAAAAAA"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/admin/showtimes", &usher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateBooking(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0], e.seats[1])
	assert.Equal(t, domain.BookingPending, b.Booking.Status)
	assert.Len(t, b.Tickets, 2)

	w := e.do(t, http.MethodGet, e.path("/showtimes/:id/availability"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := decode[domain.SeatCounts](t, w)
	assert.Equal(t, domain.SeatCounts{Available: 2, Reserved: 2, Total: 4}, counts)

	w = e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, CreateBookingRequest{
		SeatIDs: []int64{e.seats[1], e.seats[2]}, CustomerName: "Bob", CustomerEmail: "bob@example.com",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "seat_unavailable", resp.Error)
	assert.Equal(t, []any{float64(e.seats[1])}, resp.Details["seat_ids"])
}

func TestCreateBooking_BadRequests(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, CreateBookingRequest{
		CustomerName: "A", CustomerEmail: "a@example.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[ErrorResponse](t, w).Error)

	w = e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, CreateBookingRequest{
		SeatIDs: []int64{e.seats[0]}, CustomerName: "A", CustomerEmail: "nope",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Details, "CustomerEmail")

	w = e.do(t, http.MethodPost, "/showtimes/abc/bookings", &customer, CreateBookingRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/showtimes/999/bookings", &customer, CreateBookingRequest{
		SeatIDs: []int64{e.seats[0]}, CustomerName: "A", CustomerEmail: "a@example.com",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type memIdempotency struct {
	mu   sync.Mutex
	vals map[string][]byte
}

func (m *memIdempotency) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = nil
	return true, nil
}

func (m *memIdempotency) SaveResult(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = payload
	return nil
}

func (m *memIdempotency) GetResult(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.vals[key]
	return v, v != nil, nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

func TestCreateBooking_IdempotencyKeyReplays(t *testing.T) {
	idem := &memIdempotency{vals: map[string][]byte{}}
	e := newEnv(t, func(d *Deps) { d.Idempotency = idem })

	body := CreateBookingRequest{SeatIDs: []int64{e.seats[0]}, CustomerName: "A", CustomerEmail: "a@example.com"}

	first := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "k-1", first.Header().Get("Idempotency-Key"))

	second := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, body, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// A failed attempt frees its key.
	failed := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, body, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusConflict, failed.Code)
	_, held, _ := idem.GetResult(context.Background(), redisrepo.KeyIdempotency("booking:"+strconv.FormatInt(e.showtimeID, 10)+":1", "k-2"))
	assert.False(t, held)
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, int64, time.Duration, error) {
	return false, 11, 1500 * time.Millisecond, nil
}

func TestCreateBooking_RateLimited(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.Limiter = denyLimiter{} })

	w := e.do(t, http.MethodPost, e.path("/showtimes/:id/bookings"), &customer, CreateBookingRequest{
		SeatIDs: []int64{e.seats[0]}, CustomerName: "A", CustomerEmail: "a@example.com",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestBookingLifecycle(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0])

	w := e.do(t, http.MethodGet, "/bookings/"+b.Booking.ID.String(), &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/bookings/reference/"+strings.ToLower(b.Booking.Reference), &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/bookings/not-a-uuid", &customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/payments/confirm", &customer, ConfirmPaymentRequest{
		BookingID: b.Booking.ID.String(), AmountCents: 500, PaymentMethod: "card",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "amount", decode[ErrorResponse](t, w).Details["field"])

	w = e.do(t, http.MethodPost, "/payments/confirm", &customer, ConfirmPaymentRequest{
		BookingID: b.Booking.ID.String(), AmountCents: 1000, PaymentMethod: "card",
	})
	require.Equal(t, http.StatusOK, w.Code)
	confirmed := decode[domain.BookingWithTickets](t, w)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Booking.Status)

	w = e.do(t, http.MethodGet, "/tickets/"+b.Tickets[0].Number, &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TicketConfirmed, decode[domain.Ticket](t, w).Status)

	w = e.do(t, http.MethodPost, "/bookings/"+b.Booking.ID.String()+"/cancel", &customer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/bookings/"+b.Booking.ID.String()+"/cancel", &customer, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decode[ErrorResponse](t, w).Error)
}

func TestCheckIn(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0])
	number := b.Tickets[0].Number

	w := e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: number})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decode[ErrorResponse](t, w).Error)

	w = e.do(t, http.MethodPost, "/tickets/"+number+"/confirm", &usher, TicketNoteRequest{Note: "cash"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: strings.ToLower(number)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.TicketUsed, decode[domain.Ticket](t, w).Status)

	w = e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: number})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_checked_in", decode[ErrorResponse](t, w).Error)

	w = e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: "TICKET-00000000"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: "not a ticket"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/checkin/history?action=CHECK_IN", &usher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]domain.HistoryRecord](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, number, history[0].TicketNumber)

	w = e.do(t, http.MethodGet, "/checkin/history?date=yesterday", &usher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/checkin/tickets/"+number, &usher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	details := decode[domain.TicketDetails](t, w)
	assert.Len(t, details.History, 2)
}

func TestCheckIn_OutsideWindow(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0])
	w := e.do(t, http.MethodPost, "/payments/confirm", &customer, ConfirmPaymentRequest{
		BookingID: b.Booking.ID.String(), AmountCents: 1000, PaymentMethod: "card",
	})
	require.Equal(t, http.StatusOK, w.Code)

	e.clock.Advance(time.Hour)

	w = e.do(t, http.MethodPost, "/checkin", &usher, CheckInRequest{TicketNumber: b.Tickets[0].Number})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "outside_window", resp.Error)
	assert.Equal(t, "too_late", resp.Details["direction"])
	assert.Equal(t, float64(10), resp.Details["minutes"])
}

func TestListSeats_ETag(t *testing.T) {
	e := newEnv(t)
	e.createBooking(t, e.seats[0])

	w := e.do(t, http.MethodGet, e.path("/showtimes/:id/seats?only=available&limit=2"), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	seats := decode[[]domain.SeatWithStatus](t, w)
	require.Len(t, seats, 2)
	assert.Equal(t, e.seats[1], seats[0].ID)

	tag := w.Header().Get("ETag")
	require.NotEmpty(t, tag)

	w = e.do(t, http.MethodGet, e.path("/showtimes/:id/seats?only=available&limit=2"), nil, nil, "If-None-Match", tag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = e.do(t, http.MethodGet, e.path("/showtimes/:id/seats?only=some"), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type oneShotStream struct {
	change redisrepo.SeatChange
}

func (s oneShotStream) Subscribe(ctx context.Context, _ int64, handler func(context.Context, redisrepo.SeatChange)) error {
	handler(ctx, s.change)
	return nil
}

// streamRecorder adds the CloseNotifier that gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestSeatStream(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, e.path("/showtimes/:id/seats/stream"), nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	change := redisrepo.SeatChange{Type: "booking.created", SeatIDs: []int64{7}, TsUnix: now.Unix()}
	e = newEnv(t, func(d *Deps) { d.Seats = oneShotStream{change: change} })

	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, e.path("/showtimes/:id/seats/stream"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event:seats")
	assert.Contains(t, rec.Body.String(), `"seat_ids":[7]`)

	w = e.do(t, http.MethodGet, "/showtimes/999/seats/stream", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/admin/rooms/2/seats", &manager, BatchCreateSeatsRequest{
		Seats: []SeatInput{{Row: "A", Number: 1}, {Row: "A", Number: 2, SeatType: "VIP"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(2), decode[CreatedResponse](t, w).Created)

	w = e.do(t, http.MethodPost, "/admin/showtimes", &manager, CreateShowtimeRequest{
		BranchID: 1, RoomID: 2, MovieID: 5, BasePriceCents: 1100, StartsAt: now.Add(24 * time.Hour), DurationMinutes: 120,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	st := decode[domain.Showtime](t, w)
	assert.Equal(t, 2, st.AvailableSeats)

	w = e.do(t, http.MethodPost, "/admin/showtimes", &manager, CreateShowtimeRequest{
		BranchID: 9, RoomID: 2, MovieID: 5, StartsAt: now,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/admin/showtimes/"+strconv.FormatInt(st.ID, 10)+"/inventory", &manager, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Zero(t, decode[CreatedResponse](t, w).Created)
}

func TestTicketQueries(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0], e.seats[1])

	w := e.do(t, http.MethodGet, "/tickets/customer", &customer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mine := decode[[]domain.TicketRecord](t, w)
	require.Len(t, mine, 2)
	assert.Equal(t, b.Booking.Reference, mine[0].BookingReference)

	w = e.do(t, http.MethodGet, "/tickets/customer", &usher, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "customer_email", decode[ErrorResponse](t, w).Details["field"])

	w = e.do(t, http.MethodGet, "/tickets/customer?customer_email=alice@example.com", &usher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[[]domain.TicketRecord](t, w), 2)

	w = e.do(t, http.MethodGet, "/tickets/search?q="+b.Tickets[0].Number, &usher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	found := decode[[]domain.TicketRecord](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, b.Tickets[0].Number, found[0].Number)

	w = e.do(t, http.MethodGet, "/tickets/search?status=RESERVED&showtime_id="+strconv.FormatInt(e.showtimeID, 10), &usher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[[]domain.TicketRecord](t, w), 2)

	w = e.do(t, http.MethodGet, "/tickets/search?status=LOST", &usher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/tickets/search?branch_id=2", &usher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/tickets/search", &customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the number route still resolves next to the static ones
	w = e.do(t, http.MethodGet, "/tickets/"+b.Tickets[0].Number, &customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPayment(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0])
	path := "/payments/booking/" + b.Booking.ID.String()

	w := e.do(t, http.MethodGet, path, &customer, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/payments/confirm", &customer, ConfirmPaymentRequest{
		BookingID: b.Booking.ID.String(), AmountCents: 1000, PaymentMethod: "card",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, path, &customer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pay := decode[domain.Payment](t, w)
	assert.Equal(t, int64(1000), pay.AmountCents)
	assert.Equal(t, "card", pay.Method)

	stranger := domain.Principal{UserID: 9, Username: "mallory", Role: domain.RoleCustomer}
	w = e.do(t, http.MethodGet, path, &stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/payments/booking/nope", &customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMessagesHideOperationChain(t *testing.T) {
	e := newEnv(t)

	b := e.createBooking(t, e.seats[0])
	stranger := domain.Principal{UserID: 9, Username: "mallory", Role: domain.RoleCustomer}
	missingID := "0b7f1c8e-7d3a-4b8e-9a51-3f0c2d9e6a10"

	// cancelling the only ticket cancels the booking too
	w := e.do(t, http.MethodPost, "/tickets/"+b.Tickets[0].Number+"/cancel", &usher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tests := []struct {
		name    string
		method  string
		path    string
		p       *domain.Principal
		status  int
		message string
	}{
		{
			name:    "not found",
			method:  http.MethodGet,
			path:    "/bookings/" + missingID,
			p:       &customer,
			status:  http.StatusNotFound,
			message: "booking " + missingID + " not found",
		},
		{
			name:    "forbidden",
			method:  http.MethodGet,
			path:    "/bookings/" + b.Booking.ID.String(),
			p:       &stranger,
			status:  http.StatusForbidden,
			message: "forbidden: booking belongs to another user",
		},
		{
			name:    "ticket already cancelled",
			method:  http.MethodPost,
			path:    "/tickets/" + b.Tickets[0].Number + "/cancel",
			p:       &usher,
			status:  http.StatusConflict,
			message: "cannot cancel ticket in status CANCELLED",
		},
		{
			name:    "booking already cancelled",
			method:  http.MethodPost,
			path:    "/bookings/" + b.Booking.ID.String() + "/cancel",
			p:       &customer,
			status:  http.StatusConflict,
			message: domain.ErrAlreadyCancelled.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.p, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.message, resp.Message)
			assert.NotContains(t, resp.Message, "service.")
			assert.NotContains(t, resp.Message, "uow.")
		})
	}
}
