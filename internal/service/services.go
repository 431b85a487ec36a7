package service

import (
	"log/slog"

	"github.com/kirinyoku/cineseat/internal/clock"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/kirinyoku/cineseat/internal/repository"
	redisrepo "github.com/kirinyoku/cineseat/internal/repository/redis"
	"github.com/kirinyoku/cineseat/internal/service/admin"
	"github.com/kirinyoku/cineseat/internal/service/booking"
	"github.com/kirinyoku/cineseat/internal/service/checkin"
	"github.com/kirinyoku/cineseat/internal/service/inventory"
	"github.com/kirinyoku/cineseat/internal/service/notify"
)

type Services struct {
	Booking   *booking.Service
	Checkin   *checkin.Service
	Inventory *inventory.Service
	Admin     *admin.Service
}

type Config struct {
	Booking   booking.Config
	Checkin   checkin.Config
	Inventory inventory.Config
}

// NewServices wires the services over one store. cache and pub may be nil.
func NewServices(
	store repository.Store,
	cache *redisrepo.Cache,
	pub events.Publisher,
	clk clock.Clock,
	log *slog.Logger,
	cfg Config,
) *Services {
	var inv notify.Invalidator
	if cache != nil {
		inv = cache
	}
	notifier := notify.New(inv, pub, log)

	return &Services{
		Booking:   booking.New(store, clk, notifier, log, cfg.Booking),
		Checkin:   checkin.New(store, clk, notifier, log, cfg.Checkin),
		Inventory: inventory.New(store, cache, clk, cfg.Inventory),
		Admin:     admin.New(store, notifier, log),
	}
}
