package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/config"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/postgres"
	"github.com/kirinyoku/cineseat/internal/reclaimer"
	"github.com/kirinyoku/cineseat/internal/redis"
	"github.com/kirinyoku/cineseat/internal/repository"
	"github.com/kirinyoku/cineseat/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/cineseat/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
	"github.com/kirinyoku/cineseat/internal/service"
	"github.com/kirinyoku/cineseat/internal/service/booking"
	"github.com/kirinyoku/cineseat/internal/service/checkin"
	httpgin "github.com/kirinyoku/cineseat/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	reclaimer  *reclaimer.Reclaimer
	publisher  events.Publisher
	pool       *pgxpool.Pool
	rdb        *goredis.Client
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{cfg: cfg, logger: logger}

	store, err := a.initStore(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deps := httpgin.Deps{JWTSecret: cfg.Auth.JWTSecret, Logger: logger}

	var (
		cache  *redisrepo.Cache
		locker *redisrepo.Locker
		pubs   events.Multi
	)
	if !cfg.Redis.Disabled {
		a.rdb, err = redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		cache = redisrepo.NewCache(a.rdb)
		locker = redisrepo.NewLocker(a.rdb)
		seats := redisrepo.NewSeatsPubSub(a.rdb)
		pubs = append(pubs, seats)

		deps.Seats = seats
		deps.Limiter = redisrepo.NewSlidingWindowLimiter(a.rdb, "booking", cfg.RateLimit.Limit, cfg.RateLimit.Window)
		deps.Idempotency = redisrepo.NewIdempotencyStore(a.rdb, cfg.Booking.IdempotencyTTL)
	} else {
		logger.Warn("redis disabled: caching, rate limiting, idempotency keys and seat streams are off")
	}

	broker, err := newBrokerPublisher(cfg.Events)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if broker != nil {
		pubs = append(pubs, broker)
	}
	if len(pubs) > 0 {
		a.publisher = pubs
	}

	services := service.NewServices(store, cache, a.publisher, clock.System{}, logger, service.Config{
		Booking: booking.Config{
			HoldTTL:      cfg.Booking.HoldTTL,
			ReclaimBatch: cfg.Reclaimer.BatchSize,
		},
		Checkin: checkin.Config{Window: cfg.Booking.CheckinWindow},
	})
	deps.Services = services

	// A nil *Locker must not reach the reclaimer as a non-nil interface.
	if locker != nil {
		a.reclaimer = reclaimer.New(services.Booking, locker, cfg.Reclaimer.Interval, logger)
	} else {
		a.reclaimer = reclaimer.New(services.Booking, nil, cfg.Reclaimer.Interval, logger)
	}

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           httpgin.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.Store.Driver == config.StoreDriverMemory {
		a.logger.Warn("using in-memory store: data is lost on restart")
		return memory.NewStore(), nil
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN(), MaxConns: a.cfg.Postgres.MaxConns})
	if err != nil {
		return nil, err
	}
	a.pool = pool

	if a.cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		a.logger.Info("database migrations applied")
	}

	return postgresrepo.NewStore(pool), nil
}

func newBrokerPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsDriverAMQP:
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case config.EventsDriverKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Hold reclaimer
	g.Go(func() error {
		a.reclaimer.Run(gCtx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("closing event publishers", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
