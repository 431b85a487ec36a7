package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type BookingRepo struct {
	db DB
}

const selectBooking = `SELECT id, booking_reference, showtime_id, branch_id, user_id,
	customer_name, customer_email, customer_phone, total_cents, ticket_quantity,
	status, expires_at, created_at, updated_at
	FROM bookings`

func (r *BookingRepo) Insert(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Insert"

	_, err := r.db.Exec(ctx,
		`INSERT INTO bookings(id, booking_reference, showtime_id, branch_id, user_id,
		     customer_name, customer_email, customer_phone, total_cents, ticket_quantity,
		     status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		b.ID, b.Reference, b.ShowtimeID, b.BranchID, b.UserID,
		b.Customer.Name, b.Customer.Email, b.Customer.Phone, b.TotalCents, b.TicketQuantity,
		b.Status, b.ExpiresAt, b.CreatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	b, err := scanBooking(r.db.QueryRow(ctx, selectBooking+` WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// GetForUpdate reads the booking and locks its row until the transaction ends.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetForUpdate"

	b, err := scanBooking(r.db.QueryRow(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.GetByReference"

	b, err := scanBooking(r.db.QueryRow(ctx, selectBooking+` WHERE booking_reference = $1`, reference))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus, at time.Time) error {
	const op = "postgres.BookingRepo.SetStatus"

	tag, err := r.db.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}

func (r *BookingRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgres.BookingRepo.ListExpired"

	rows, err := r.db.Query(ctx,
		`SELECT id FROM bookings
		 WHERE status = 'PENDING' AND expires_at <= $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

func (r *BookingRepo) InsertPayment(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.BookingRepo.InsertPayment"

	_, err := r.db.Exec(ctx,
		`INSERT INTO payments(id, booking_id, amount_cents, method, paid_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.BookingID, p.AmountCents, p.Method, p.PaidAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.Reference, &b.ShowtimeID, &b.BranchID, &b.UserID,
		&b.Customer.Name, &b.Customer.Email, &b.Customer.Phone, &b.TotalCents, &b.TicketQuantity,
		&b.Status, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) GetPayment(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.BookingRepo.GetPayment"

	var p domain.Payment
	err := r.db.QueryRow(ctx,
		`SELECT id, booking_id, amount_cents, method, paid_at FROM payments WHERE booking_id = $1`,
		bookingID,
	).Scan(&p.ID, &p.BookingID, &p.AmountCents, &p.Method, &p.PaidAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}
