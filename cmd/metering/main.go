// The metering binary runs the subscription and usage metering engine as a
// standalone HTTP service: the usage gate on the request path, the billing
// event reconciler on the webhook path, Postgres for durable entitlement and
// overage state, Redis for the hot usage counters and event dedup.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/httpserver"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/pg"
	"github.com/dmitrymomot/meterkit/pkg/reconciler"
	"github.com/dmitrymomot/meterkit/pkg/redis"
	"github.com/dmitrymomot/meterkit/svc/metering"
)

type infraConfig struct {
	HTTP   httpserver.Config
	PG     pg.Config
	Redis  redis.Config
	Paddle billing.PaddleConfig
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("metering service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := metering.LoadConfig()
	if err != nil {
		return err
	}

	var infra infraConfig
	if err := env.Parse(&infra); err != nil {
		return errors.Join(metering.ErrFailedToLoadConfig, err)
	}

	logOpts := []logger.Option{logger.WithService(cfg.ServiceName)}
	if cfg.Environment == "development" {
		logOpts = append(logOpts, logger.WithDevelopment())
	}
	log := logger.New(logOpts...)
	slog.SetDefault(log)

	pool, err := pg.Connect(ctx, infra.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, infra.PG, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, infra.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	provider, err := billing.NewPaddleProvider(infra.Paddle)
	if err != nil {
		return err
	}

	svc, err := metering.New(ctx, cfg, metering.Dependencies{
		Provider:     provider,
		Entitlements: entitlement.NewPostgresStore(pool, log),
		Counters:     ledger.NewRedisStore(rdb),
		Overages:     ledger.NewPostgresOverageStore(pool),
		Processed:    reconciler.NewRedisProcessedStore(rdb),
		Logger:       log,
	})
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Get("/healthz", httpserver.HealthCheckHandler(log))
	r.Get("/readyz", httpserver.HealthCheckHandler(log,
		pg.Healthcheck(pool),
		redis.Healthcheck(rdb),
	))
	r.Mount("/", svc.Router())

	return httpserver.New(infra.HTTP, httpserver.WithLogger(log)).Run(ctx, r)
}
