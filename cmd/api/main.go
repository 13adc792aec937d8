package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/elocalpass/elocalpass-backend/api/controllers"
	"github.com/elocalpass/elocalpass-backend/api/routes"
	"github.com/elocalpass/elocalpass-backend/internal/bootstrap"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/env"
	"github.com/elocalpass/elocalpass-backend/pkg/instance"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/migrate"
	"github.com/elocalpass/elocalpass-backend/pkg/qstash"
	"github.com/elocalpass/elocalpass-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootLog := logger.New(logger.Options{ServiceName: "api"})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg := logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// listenAddr honours the platform-assigned PORT before the configured one.
func listenAddr(cfg *config.Config) string {
	return ":" + env.First(cfg.App.Port, "PORT")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	var cache controllers.Pinger
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		cache = redisClient
	}

	services, err := bootstrap.Build(cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	verifier := qstash.NewVerifier(cfg.Scheduling.SigningKeys())
	if !verifier.Enabled() && cfg.Scheduling.CronSecret == "" {
		logg.Warn(ctx, "no QStash signing keys or CRON_SECRET configured; trigger routes are open")
	}
	if !cfg.Scheduling.DispatchEnabled() {
		logg.Warn(ctx, "QStash dispatch disabled; scheduled QR codes rely on the overdue retry sweep")
	}

	server := &http.Server{
		Addr: listenAddr(cfg),
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Cache:      cache,
			Gatherer:   prometheus.DefaultGatherer,
			Verifier:   verifier,
			Scheduling: services.Scheduling,
			Rebuy:      services.Rebuy,
			Orders:     services.Orders,
			Templates:  services.Templates,
			DLQ:        services.OutboxDLQ,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = logg.WithField(ctx, "addr", server.Addr)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
