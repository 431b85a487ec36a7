package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/domain"
	"github.com/kirinyoku/cineseat/internal/repository"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
)

type Config struct {
	AvailabilityTTL  time.Duration
	SeatMapTTL       time.Duration
	DefaultSeatsPage int
	MaxSeatsPage     int
}

// Service serves the read side of the seat ledger. Results may be cached for a
// few seconds; every committed change drops the showtime's entries.
type Service struct {
	store repository.Store
	cache *redisrepo.Cache
	clock clock.Clock
	cfg   Config
}

// New accepts a nil cache, in which case every read goes to the store.
func New(store repository.Store, cache *redisrepo.Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 5 * time.Second
	}

	if cfg.SeatMapTTL <= 0 {
		cfg.SeatMapTTL = 5 * time.Second
	}

	if cfg.DefaultSeatsPage <= 0 {
		cfg.DefaultSeatsPage = 100
	}

	if cfg.MaxSeatsPage <= 0 {
		cfg.MaxSeatsPage = 500
	}

	if clk == nil {
		clk = clock.System{}
	}

	return &Service{store: store, cache: cache, clock: clk, cfg: cfg}
}

// Availability counts the showtime's seats by status. A lapsed hold counts as available.
//
// Returns:
//   - error: domain.ErrNotFound if the showtime does not exist.
func (s *Service) Availability(ctx context.Context, showtimeID int64) (*domain.SeatCounts, error) {
	const op = "service.inventory.Availability"

	counts, err := cached(ctx, s.cache, redisrepo.KeyShowtimeAvailability(showtimeID), s.cfg.AvailabilityTTL,
		func(ctx context.Context) (domain.SeatCounts, error) {
			c, err := s.store.Inventory().Counts(ctx, showtimeID, s.clock.Now())
			if err != nil {
				return domain.SeatCounts{}, notFound(err, showtimeID)
			}
			return *c, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &counts, nil
}

// Seats returns one page of the seat map ordered by seat id.
//
// Returns:
//   - error: domain.ErrNotFound if the showtime does not exist.
func (s *Service) Seats(
	ctx context.Context,
	showtimeID int64,
	onlyAvailable bool,
	limit, offset int,
) ([]domain.SeatWithStatus, error) {
	const op = "service.inventory.Seats"

	switch {
	case limit <= 0:
		limit = s.cfg.DefaultSeatsPage
	case limit > s.cfg.MaxSeatsPage:
		limit = s.cfg.MaxSeatsPage
	}
	if offset < 0 {
		offset = 0
	}

	key := redisrepo.KeyShowtimeSeatMap(showtimeID, onlyAvailable, limit, offset)

	seats, err := cached(ctx, s.cache, key, s.cfg.SeatMapTTL,
		func(ctx context.Context) ([]domain.SeatWithStatus, error) {
			out, err := s.store.Inventory().List(ctx, showtimeID, onlyAvailable, limit, offset, s.clock.Now())
			if err != nil {
				return nil, notFound(err, showtimeID)
			}
			if out == nil {
				out = []domain.SeatWithStatus{}
			}
			return out, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return seats, nil
}

func (s *Service) Showtime(ctx context.Context, id int64) (*domain.Showtime, error) {
	const op = "service.inventory.Showtime"

	st, err := s.store.Catalog().GetShowtime(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err, id))
	}

	return st, nil
}

func cached[T any](
	ctx context.Context,
	c *redisrepo.Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}
	return redisrepo.GetOrSetJSON(ctx, c, key, ttl, loader)
}

func notFound(err error, showtimeID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Entity: "showtime", Key: fmt.Sprint(showtimeID)}
	}
	return err
}
