package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/elocalpass/elocalpass-backend/internal/bootstrap"
	"github.com/elocalpass/elocalpass-backend/internal/cron"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/instance"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
	"github.com/elocalpass/elocalpass-backend/pkg/metrics"
	"github.com/elocalpass/elocalpass-backend/pkg/migrate"
	"github.com/elocalpass/elocalpass-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cron cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	lock, closeLock, err := newLock(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	defer closeLock()

	services, err := bootstrap.Build(cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, services)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     registry,
		Lock:         lock,
		Metrics:      metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		CycleTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
		"instance":    instance.GetID(),
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services) (*cron.Registry, error) {
	retryJob, err := cron.NewScheduledRetryJob(logg, services.Scheduling)
	if err != nil {
		return nil, err
	}
	rebuyJob, err := cron.NewRebuySweepJob(logg, services.Rebuy)
	if err != nil {
		return nil, err
	}
	deliveryCleanup, err := cron.NewEmailDeliveryCleanupJob(cron.EmailDeliveryCleanupJobParams{
		Logger:    logg,
		Purger:    services.Notifications,
		Retention: cfg.Cron.DeliveryRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:          logg,
		DB:              dbClient,
		Repository:      services.OutboxRepo,
		Retention:       cfg.Cron.OutboxRetention,
		FailedRetention: cfg.Cron.OutboxFailedRetention,
		MinAttempts:     cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	welcomeResend, err := cron.NewWelcomeResendJob(cron.WelcomeResendJobParams{
		Logger:   logg,
		Resender: services.QRCodes,
		Grace:    cfg.Cron.WelcomeResendGrace,
		MaxAge:   cfg.Cron.WelcomeResendMaxAge,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(retryJob, welcomeResend, rebuyJob, deliveryCleanup, outboxRetention)
}

// newLock uses Redis when configured so several workers can share one
// schedule; otherwise the cycle is guarded in-process only.
func newLock(cfg *config.Config, logg *logger.Logger) (cron.Lock, func(), error) {
	if !cfg.Redis.Enabled() {
		logg.Warn(context.Background(), "redis not configured; cron lock is process-local")
		return cron.NewLocalLock(), func() {}, nil
	}
	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.LockName), cfg.Cron.LockTTL)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return lock, closeFn, nil
}
