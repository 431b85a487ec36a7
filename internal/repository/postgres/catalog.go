package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
)

type CatalogRepo struct {
	db DB
}

const selectSeat = `SELECT s.id, s.room_id, s.row_label, s.seat_number, s.seat_type_id, t.name, t.price_multiplier::float8
	FROM seats s
	JOIN seat_types t ON t.id = s.seat_type_id`

// GetShowtime retrieves a showtime by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the showtime does not exist.
func (r *CatalogRepo) GetShowtime(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "postgres.CatalogRepo.GetShowtime"

	var (
		s       domain.Showtime
		minutes int
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, branch_id, room_id, movie_id, base_price_cents, starts_at,
		        duration_minutes, available_seats, booked_seats
		 FROM showtimes WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.BranchID, &s.RoomID, &s.MovieID, &s.BasePriceCents, &s.StartsAt,
		&minutes, &s.AvailableSeats, &s.BookedSeats,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	s.Duration = time.Duration(minutes) * time.Minute

	return &s, nil
}

func (r *CatalogRepo) CreateShowtime(ctx context.Context, s domain.Showtime) (int64, error) {
	const op = "postgres.CatalogRepo.CreateShowtime"

	var id int64
	if err := r.db.QueryRow(ctx,
		`INSERT INTO showtimes(branch_id, room_id, movie_id, base_price_cents, starts_at, duration_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		s.BranchID, s.RoomID, s.MovieID, s.BasePriceCents, s.StartsAt, int(s.Duration/time.Minute),
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// AdjustShowtimeCounters applies the deltas in place so it composes with the
// seat-status update of the same transaction.
func (r *CatalogRepo) AdjustShowtimeCounters(ctx context.Context, showtimeID int64, availableDelta, bookedDelta int) error {
	const op = "postgres.CatalogRepo.AdjustShowtimeCounters"

	tag, err := r.db.Exec(ctx,
		`UPDATE showtimes
		 SET available_seats = available_seats + $2,
		     booked_seats = booked_seats + $3
		 WHERE id = $1`,
		showtimeID, availableDelta, bookedDelta,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, pgx.ErrNoRows)
	}

	return nil
}

func (r *CatalogRepo) SeatTypes(ctx context.Context) ([]domain.SeatType, error) {
	const op = "postgres.CatalogRepo.SeatTypes"

	rows, err := r.db.Query(ctx, `SELECT id, name, price_multiplier::float8 FROM seat_types ORDER BY id`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SeatType, error) {
		var t domain.SeatType
		err := row.Scan(&t.ID, &t.Name, &t.PriceMultiplier)
		return t, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) SeatsByIDs(ctx context.Context, roomID int64, seatIDs []int64) ([]domain.Seat, error) {
	const op = "postgres.CatalogRepo.SeatsByIDs"

	rows, err := r.db.Query(ctx,
		selectSeat+` WHERE s.room_id = $1 AND s.id = ANY($2) ORDER BY s.id`,
		roomID, seatIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) SeatsForRoom(ctx context.Context, roomID int64) ([]domain.Seat, error) {
	const op = "postgres.CatalogRepo.SeatsForRoom"

	rows, err := r.db.Query(ctx, selectSeat+` WHERE s.room_id = $1 ORDER BY s.id`, roomID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, scanSeat)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) CreateSeats(ctx context.Context, roomID int64, seats []domain.Seat) (int64, error) {
	const op = "postgres.CatalogRepo.CreateSeats"

	batch := &pgx.Batch{}
	for _, s := range seats {
		batch.Queue(
			`INSERT INTO seats(room_id, row_label, seat_number, seat_type_id)
			 SELECT $1, $2, $3, id FROM seat_types WHERE name = $4
			 ON CONFLICT (room_id, row_label, seat_number) DO NOTHING`,
			roomID, s.Row, s.Number, s.SeatType,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	var created int64
	for range seats {
		tag, err := br.Exec()
		if err != nil {
			return 0, wrapDBErr(op, err)
		}
		created += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return created, nil
}

func scanSeat(row pgx.CollectableRow) (domain.Seat, error) {
	var s domain.Seat
	err := row.Scan(&s.ID, &s.RoomID, &s.Row, &s.Number, &s.SeatTypeID, &s.SeatType, &s.PriceMultiplier)
	return s, err
}
