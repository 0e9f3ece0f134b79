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

	"github.com/angelmondragon/benefits-logistics/api/routes"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/inbound"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/outbound"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/snapshots"
	"github.com/angelmondragon/benefits-logistics/internal/purchaseorders"
	orianwebhook "github.com/angelmondragon/benefits-logistics/internal/webhooks/orian"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
	"github.com/angelmondragon/benefits-logistics/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	if cfg.App.IsProd() && cfg.Orian.WebhookSecret == "" {
		requireResource(ctx, logg, "orian webhook secret", errors.New("BENEFITS_ORIAN_WEBHOOK_SECRET is required in production"))
	}

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

	purchaseOrderService, err := purchaseorders.NewService(purchaseorders.NewRepository(dbClient.DB()), dbClient, outboxService)
	requireResource(ctx, logg, "purchase order service", err)

	deliveryGuard, err := orianwebhook.NewDeliveryGuard(redisClient, cfg.Orian.WebhookReplayTTL)
	requireResource(ctx, logg, "webhook delivery guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			GCS:            gcsClient,
			Messages:       processor,
			DeliveryGuard:  deliveryGuard,
			Snapshots:      snapshotService,
			Outbound:       outboundService,
			PurchaseOrders: purchaseOrderService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
		logg.Info(logCtx, "api server stopped")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
