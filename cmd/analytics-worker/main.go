package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/benefits-logistics/internal/analytics/router"
	"github.com/angelmondragon/benefits-logistics/internal/analytics/writer"
	"github.com/angelmondragon/benefits-logistics/pkg/bigquery"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/consume"
	"github.com/angelmondragon/benefits-logistics/pkg/pubsub"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(ctx, logg, "config", err)
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	must(ctx, logg, "redis", err)
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	must(ctx, logg, "pubsub", err)
	defer closeQuietly(ctx, logg, "pubsub", pubsubClient.Close)

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, writer.Tables(cfg.BigQuery)...)
	must(ctx, logg, "bigquery", err)
	defer closeQuietly(ctx, logg, "bigquery", bq.Close)

	rows, err := writer.New(bq, writer.Config{
		StatusEventsTable: cfg.BigQuery.StatusEventsTable,
		ReceiptLinesTable: cfg.BigQuery.ReceiptLinesTable,
		BatchSize:         cfg.BigQuery.BatchSize,
	})
	must(ctx, logg, "analytics writer", err)

	routes, err := router.Routes(rows, logg)
	must(ctx, logg, "analytics routes", err)

	ledger, err := consume.NewRedisLedger(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	must(ctx, logg, "processed ledger", err)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		must(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}
	receiver, err := consume.NewReceiver(consume.ReceiverParams{
		Name:         router.ConsumerName,
		Subscription: subscription,
		Router:       routes,
		Ledger:       ledger,
		Metrics:      metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	must(ctx, logg, "analytics receiver", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})
	metrics.Serve(runCtx, cfg.Service.MetricsAddr, logg)
	logg.Info(runCtx, "analytics worker ready")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return receiver.Run(groupCtx) })
	group.Go(func() error { return rows.Run(groupCtx, cfg.BigQuery.FlushInterval) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "analytics worker stopped")
}

func must(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", resource), "startup failed", err)
	os.Exit(1)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", resource), "close failed", err)
	}
}
