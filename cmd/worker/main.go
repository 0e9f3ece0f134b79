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

	"github.com/angelmondragon/benefits-logistics/internal/logistics/consumer"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/inbound"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/outbound"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/snapshots"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/consume"
	"github.com/angelmondragon/benefits-logistics/pkg/pubsub"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
	"github.com/angelmondragon/benefits-logistics/pkg/storage/gcs"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs", err)
		}
	}()

	orianClient, err := orian.NewClient(cfg.Orian.BaseURL, cfg.Orian.APIToken, orian.WithTimeout(cfg.Orian.RequestTimeout))
	requireResource(ctx, logg, "orian client", err)

	loc, err := cfg.Orian.Location()
	requireResource(ctx, logg, "orian timezone", err)

	codec := ids.NewCodec(cfg.Orian.IDPrefix)
	logisticsMetrics := metrics.NewLogisticsMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	syncer, err := outbound.NewClient(outbound.ClientParams{
		Orian:     orianClient,
		Codec:     codec,
		Consignee: cfg.Orian.Consignee,
		Location:  loc,
		Metrics:   logisticsMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "outbound client", err)

	outboundService, err := outbound.NewService(outbound.ServiceParams{
		Repo:     outbound.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Syncer:   syncer,
		Location: loc,
		Logger:   logg,
	})
	requireResource(ctx, logg, "outbound service", err)

	processor, err := inbound.NewProcessor(inbound.ProcessorParams{
		Repo:     inbound.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Outbox:   outboxService,
		Codec:    codec,
		Center:   enums.LogisticsCenterOrian,
		Location: loc,
		Metrics:  logisticsMetrics,
		Logger:   logg,
	})
	requireResource(ctx, logg, "inbound processor", err)

	snapshotService, err := snapshots.NewService(snapshots.ServiceParams{
		Repo:    snapshots.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxService,
		Storage: gcsClient,
		Bucket:  gcsClient.DefaultBucket(),
		Prefix:  cfg.Logistics.SnapshotPrefix,
		Center:  enums.LogisticsCenterOrian,
		Logger:  logg,
	})
	requireResource(ctx, logg, "snapshot service", err)

	ledger, err := consume.NewRedisLedger(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	requireResource(ctx, logg, "processed ledger", err)

	subscription := pubsubClient.LogisticsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "logistics subscription", errors.New("subscription not configured"))
	}

	routes, err := consumer.Routes(consumer.Params{
		Outbound:  outboundService,
		Messages:  processor,
		Snapshots: snapshotService,
		Logger:    logg,
	})
	requireResource(ctx, logg, "logistics routes", err)

	logisticsConsumer, err := consume.NewReceiver(consume.ReceiverParams{
		Name:         consumer.Name,
		Subscription: subscription,
		Router:       routes,
		Ledger:       ledger,
		Metrics:      metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	requireResource(ctx, logg, "logistics consumer", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: []dependency{
			{name: "database", ping: dbClient.Ping},
			{name: "redis", ping: redisClient.Ping},
			{name: "pubsub", ping: pubsubClient.Ping},
			{name: "gcs", ping: gcsClient.Ping},
		},
		Consumer: logisticsConsumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	metrics.Serve(runCtx, cfg.Service.MetricsAddr, logg)
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
