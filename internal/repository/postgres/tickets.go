package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type TicketRepo struct {
	db DB
}

const selectTicket = `SELECT id, ticket_number, booking_id, showtime_id, seat_id, seat_label, seat_type,
	unit_price_cents, final_price_cents, qr_code_data, status, checked_in, checked_in_at,
	COALESCE(checked_in_by, ''), created_at, updated_at
	FROM tickets`

func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgres.TicketRepo.InsertBatch"

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(id, ticket_number, booking_id, showtime_id, seat_id, seat_label, seat_type,
			     unit_price_cents, final_price_cents, qr_code_data, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
			t.ID, t.Number, t.BookingID, t.ShowtimeID, t.SeatID, t.SeatLabel, t.SeatType,
			t.UnitPriceCents, t.FinalPriceCents, t.QRCodeData, t.Status, t.CreatedAt,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByBooking"

	return r.list(ctx, op, selectTicket+` WHERE booking_id = $1 ORDER BY created_at, ticket_number`, bookingID)
}

func (r *TicketRepo) ListByBookingForUpdate(ctx context.Context, bookingID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByBookingForUpdate"

	return r.list(ctx, op, selectTicket+` WHERE booking_id = $1 ORDER BY created_at, ticket_number FOR UPDATE`, bookingID)
}

func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetByNumber"

	t, err := scanTicket(r.db.QueryRow(ctx, selectTicket+` WHERE ticket_number = $1`, number))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) GetByNumberForUpdate(ctx context.Context, number string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetByNumberForUpdate"

	t, err := scanTicket(r.db.QueryRow(ctx, selectTicket+` WHERE ticket_number = $1 FOR UPDATE`, number))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) SetStatus(ctx context.Context, ids []uuid.UUID, status domain.TicketStatus, at time.Time) (int64, error) {
	const op = "postgres.TicketRepo.SetStatus"

	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = $3 WHERE id = ANY($1)`,
		ids, status, at,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

// MarkUsed is guarded on status so a concurrent second check-in changes nothing.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time, by string) (int64, error) {
	const op = "postgres.TicketRepo.MarkUsed"

	tag, err := r.db.Exec(ctx,
		`UPDATE tickets
		 SET status = 'USED', checked_in = TRUE, checked_in_at = $2, checked_in_by = $3, updated_at = $2
		 WHERE id = $1 AND status = 'CONFIRMED'`,
		id, at, by,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

// Search backs the box-office lookup and the customer ticket list.
func (r *TicketRepo) Search(ctx context.Context, f domain.TicketFilter) ([]domain.TicketRecord, error) {
	const op = "postgres.TicketRepo.Search"

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if term := strings.TrimSpace(f.Term); term != "" {
		p := arg("%" + likeEscaper.Replace(term) + "%")
		where = append(where, "(t.ticket_number ILIKE "+p+
			" OR b.booking_reference ILIKE "+p+
			" OR b.customer_name ILIKE "+p+
			" OR b.customer_email ILIKE "+p+
			" OR b.customer_phone ILIKE "+p+")")
	}
	if f.BranchID != nil {
		where = append(where, "s.branch_id = "+arg(*f.BranchID))
	}
	if f.ShowtimeID > 0 {
		where = append(where, "t.showtime_id = "+arg(f.ShowtimeID))
	}
	if f.Status != "" {
		where = append(where, "t.status = "+arg(f.Status))
	}
	if f.UserID > 0 {
		where = append(where, "b.user_id = "+arg(f.UserID))
	}
	if f.CustomerEmail != "" {
		where = append(where, "lower(b.customer_email) = lower("+arg(f.CustomerEmail)+")")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT t.id, t.ticket_number, t.booking_id, t.showtime_id, t.seat_id, t.seat_label, t.seat_type,
	       t.unit_price_cents, t.final_price_cents, t.qr_code_data, t.status, t.checked_in, t.checked_in_at,
	       COALESCE(t.checked_in_by, ''), t.created_at, t.updated_at,
	       b.booking_reference, b.customer_name, b.customer_email, b.customer_phone, s.branch_id, s.starts_at
	 FROM tickets t
	 JOIN bookings b ON b.id = t.booking_id
	 JOIN showtimes s ON s.id = t.showtime_id`)
	if len(where) > 0 {
		sb.WriteString("\n WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n ORDER BY s.starts_at DESC, t.created_at, t.ticket_number")
	if f.Limit > 0 {
		sb.WriteString("\n LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString("\n OFFSET " + arg(f.Offset))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketRecord, error) {
		var rec domain.TicketRecord
		t := &rec.Ticket
		err := row.Scan(
			&t.ID, &t.Number, &t.BookingID, &t.ShowtimeID, &t.SeatID, &t.SeatLabel, &t.SeatType,
			&t.UnitPriceCents, &t.FinalPriceCents, &t.QRCodeData, &t.Status, &t.CheckedIn, &t.CheckedInAt,
			&t.CheckedInBy, &t.CreatedAt, &t.UpdatedAt,
			&rec.BookingReference, &rec.Customer.Name, &rec.Customer.Email, &rec.Customer.Phone,
			&rec.BranchID, &rec.StartsAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// likeEscaper keeps user input from acting as LIKE wildcards.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *TicketRepo) list(ctx context.Context, op, sql string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		t, err := scanTicket(row)
		if err != nil {
			return domain.Ticket{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.Number, &t.BookingID, &t.ShowtimeID, &t.SeatID, &t.SeatLabel, &t.SeatType,
		&t.UnitPriceCents, &t.FinalPriceCents, &t.QRCodeData, &t.Status, &t.CheckedIn, &t.CheckedInAt,
		&t.CheckedInBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
