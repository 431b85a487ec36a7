package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
)

type InventoryRepo struct {
	db DB
}

// Init copies the room layout into showtime_seats. Rows that already exist are kept.
func (r *InventoryRepo) Init(ctx context.Context, showtimeID, roomID int64) (int64, error) {
	const op = "postgres.InventoryRepo.Init"

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM showtimes WHERE id = $1)`,
		showtimeID,
	).Scan(&exists); err != nil {
		return 0, wrapDBErr(op, err)
	}
	if !exists {
		return 0, wrapDBErr(op, repository.ErrNotFound)
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO showtime_seats(showtime_id, seat_id, status)
		 SELECT $1, s.id, 'AVAILABLE'
		 FROM seats s
		 WHERE s.room_id = $2
		 ON CONFLICT (showtime_id, seat_id) DO NOTHING`,
		showtimeID, roomID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

// Lock reads the requested rows with FOR UPDATE in seat order, so competing
// claims on an overlapping seat set queue behind each other instead of interleaving.
func (r *InventoryRepo) Lock(ctx context.Context, showtimeID int64, seatIDs []int64) ([]domain.ShowtimeSeat, error) {
	const op = "postgres.InventoryRepo.Lock"

	rows, err := r.db.Query(ctx,
		`SELECT showtime_id, seat_id, status, booking_id, locked_until
		 FROM showtime_seats
		 WHERE showtime_id = $1 AND seat_id = ANY($2)
		 ORDER BY seat_id
		 FOR UPDATE`,
		showtimeID, seatIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ShowtimeSeat, error) {
		var s domain.ShowtimeSeat
		err := row.Scan(&s.ShowtimeID, &s.SeatID, &s.Status, &s.BookingID, &s.LockedUntil)
		return s, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *InventoryRepo) Reserve(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64,
	bookingID uuid.UUID,
	until time.Time,
) (int64, error) {
	const op = "postgres.InventoryRepo.Reserve"

	tag, err := r.db.Exec(ctx,
		`UPDATE showtime_seats
		 SET status = 'RESERVED', booking_id = $3, locked_until = $4
		 WHERE showtime_id = $1
		   AND seat_id = ANY($2)
		   AND status = 'AVAILABLE'`,
		showtimeID, seatIDs, bookingID, until,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *InventoryRepo) Book(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error) {
	const op = "postgres.InventoryRepo.Book"

	tag, err := r.db.Exec(ctx,
		`UPDATE showtime_seats
		 SET status = 'BOOKED', locked_until = NULL
		 WHERE showtime_id = $1
		   AND seat_id = ANY($2)
		   AND booking_id = $3
		   AND status <> 'AVAILABLE'`,
		showtimeID, seatIDs, bookingID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *InventoryRepo) Release(ctx context.Context, showtimeID int64, seatIDs []int64, bookingID uuid.UUID) (int64, error) {
	const op = "postgres.InventoryRepo.Release"

	tag, err := r.db.Exec(ctx,
		`UPDATE showtime_seats
		 SET status = 'AVAILABLE', booking_id = NULL, locked_until = NULL
		 WHERE showtime_id = $1
		   AND seat_id = ANY($2)
		   AND booking_id = $3`,
		showtimeID, seatIDs, bookingID,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

// List returns the seat map. A RESERVED row whose hold has lapsed is reported as AVAILABLE.
func (r *InventoryRepo) List(
	ctx context.Context,
	showtimeID int64,
	onlyAvailable bool,
	limit, offset int,
	now time.Time,
) ([]domain.SeatWithStatus, error) {
	const op = "postgres.InventoryRepo.List"

	if err := r.ensureShowtime(ctx, showtimeID); err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.room_id, s.row_label, s.seat_number, s.seat_type_id, t.name, t.price_multiplier::float8, v.status
		 FROM (
		     SELECT seat_id,
		            CASE WHEN status = 'RESERVED' AND locked_until <= $2 THEN 'AVAILABLE' ELSE status END AS status
		     FROM showtime_seats
		     WHERE showtime_id = $1
		 ) v
		 JOIN seats s ON s.id = v.seat_id
		 JOIN seat_types t ON t.id = s.seat_type_id
		 WHERE ($3 = FALSE OR v.status = 'AVAILABLE')
		 ORDER BY s.id
		 LIMIT $4 OFFSET $5`,
		showtimeID, now, onlyAvailable, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SeatWithStatus, error) {
		var s domain.SeatWithStatus
		err := row.Scan(&s.ID, &s.RoomID, &s.Row, &s.Number, &s.SeatTypeID, &s.SeatType, &s.PriceMultiplier, &s.Status)
		return s, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *InventoryRepo) Counts(ctx context.Context, showtimeID int64, now time.Time) (*domain.SeatCounts, error) {
	const op = "postgres.InventoryRepo.Counts"

	if err := r.ensureShowtime(ctx, showtimeID); err != nil {
		return nil, wrapDBErr(op, err)
	}

	var c domain.SeatCounts
	err := r.db.QueryRow(ctx,
		`SELECT
		     COALESCE(SUM(CASE WHEN status = 'AVAILABLE' OR (status = 'RESERVED' AND locked_until <= $2) THEN 1 ELSE 0 END), 0),
		     COALESCE(SUM(CASE WHEN status = 'RESERVED' AND locked_until > $2 THEN 1 ELSE 0 END), 0),
		     COALESCE(SUM(CASE WHEN status = 'BOOKED' THEN 1 ELSE 0 END), 0),
		     COUNT(*)
		 FROM showtime_seats
		 WHERE showtime_id = $1`,
		showtimeID, now,
	).Scan(&c.Available, &c.Reserved, &c.Booked, &c.Total)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

func (r *InventoryRepo) ensureShowtime(ctx context.Context, showtimeID int64) error {
	var id int64
	return r.db.QueryRow(ctx, `SELECT id FROM showtimes WHERE id = $1`, showtimeID).Scan(&id)
}
