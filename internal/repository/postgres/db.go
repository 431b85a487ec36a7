package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cineseat/internal/repository"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool   *pgxpool.Pool
	txOpts pgx.TxOptions
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		txOpts: pgx.TxOptions{
			IsoLevel:   pgx.Serializable,
			AccessMode: pgx.ReadWrite,
		},
	}
}

// RunTx runs fn inside a serializable transaction. Serialization failures and
// deadlocks surface as repository.ErrSerialization so callers may retry.
func (s *Store) RunTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repos) error) error {
	const op = "postgres.Store.RunTx"

	tx, err := s.pool.BeginTx(ctx, s.txOpts)
	if err != nil {
		return fmt.Errorf("%s: begin: %w: %w", op, repository.ErrTxFailed, err)
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, &repos{db: tx}); err != nil {
		if IsRetryable(err) && !errors.Is(err, repository.ErrSerialization) {
			return fmt.Errorf("%s: %w: %w", op, repository.ErrSerialization, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsRetryable(err) {
			return fmt.Errorf("%s: commit: %w: %w", op, repository.ErrSerialization, err)
		}
		return fmt.Errorf("%s: commit: %w: %w", op, repository.ErrTxFailed, err)
	}

	return nil
}

func (s *Store) Catalog() repository.CatalogRepo     { return &CatalogRepo{db: s.pool} }
func (s *Store) Inventory() repository.InventoryRepo { return &InventoryRepo{db: s.pool} }
func (s *Store) Bookings() repository.BookingRepo    { return &BookingRepo{db: s.pool} }
func (s *Store) Tickets() repository.TicketRepo      { return &TicketRepo{db: s.pool} }
func (s *Store) History() repository.HistoryRepo     { return &HistoryRepo{db: s.pool} }

type repos struct {
	db DB
}

func (r *repos) Catalog() repository.CatalogRepo     { return &CatalogRepo{db: r.db} }
func (r *repos) Inventory() repository.InventoryRepo { return &InventoryRepo{db: r.db} }
func (r *repos) Bookings() repository.BookingRepo    { return &BookingRepo{db: r.db} }
func (r *repos) Tickets() repository.TicketRepo      { return &TicketRepo{db: r.db} }
func (r *repos) History() repository.HistoryRepo     { return &HistoryRepo{db: r.db} }
