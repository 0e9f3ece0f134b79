package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/benefits-logistics/internal/cron"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/inbound"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/outbound"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logg)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.WithoutCancel(ctx), "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.WithoutCancel(ctx), "error closing redis", err)
		}
	}()

	locker, err := cron.NewRedisLocker(redisClient, cfg.App.Env, cfg.Logistics.CronLockTTL)
	if err != nil {
		return fmt.Errorf("cron locker: %w", err)
	}
	jobs, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Logistics.CronTick,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	metrics.Serve(ctx, cfg.Service.MetricsAddr, logg)
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	loc, err := cfg.Orian.Location()
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	processor, err := inbound.NewProcessor(inbound.ProcessorParams{
		Repo:     inbound.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxService,
		Codec:    ids.NewCodec(cfg.Orian.IDPrefix),
		Center:   enums.LogisticsCenterOrian,
		Location: loc,
		Metrics:  metrics.NewLogisticsMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	dispatchJob, err := cron.NewPendingOrderDispatchJob(cron.PendingOrderDispatchJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbound.NewRepository(dbClient.DB()),
		Outbox:     outboxService,
		BatchSize:  cfg.Logistics.DispatchBatchSize,
		MinAge:     cfg.Logistics.DispatchOrderMinAge,
	})
	if err != nil {
		return nil, err
	}
	replayJob, err := cron.NewLogisticsMessageReplayJob(cron.LogisticsMessageReplayJobParams{
		Logger:      logg,
		Processor:   processor,
		BatchSize:   cfg.Logistics.ReplayBatchSize,
		GracePeriod: cfg.Logistics.ReplayGracePeriod,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Outbox:           outboxRepo,
		DeadLetters:      outbox.NewDLQRepository(dbClient.DB()),
		RetentionDays:    cfg.Outbox.RetentionDays,
		DLQRetentionDays: cfg.Outbox.DLQRetentionDays,
		MaxAttempts:      cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	jobs := cron.NewRegistry()
	for _, entry := range []cron.Entry{
		{Job: dispatchJob, Every: cfg.Logistics.DispatchInterval},
		{Job: replayJob, Every: cfg.Logistics.ReplayInterval},
		{Job: retentionJob, Every: cfg.Logistics.RetentionInterval},
	} {
		if err := jobs.Add(entry.Job, entry.Every); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}
