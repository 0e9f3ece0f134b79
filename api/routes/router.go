package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/benefits-logistics/api/controllers"
	logisticscontrollers "github.com/angelmondragon/benefits-logistics/api/controllers/logistics"
	pocontrollers "github.com/angelmondragon/benefits-logistics/api/controllers/purchaseorders"
	webhookcontrollers "github.com/angelmondragon/benefits-logistics/api/controllers/webhooks"
	"github.com/angelmondragon/benefits-logistics/api/middleware"
	internalpo "github.com/angelmondragon/benefits-logistics/internal/purchaseorders"
	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type redisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

type messageService interface {
	Intake(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (*models.LogisticsCenterMessage, error)
	Replay(ctx context.Context, messageID int64) error
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (bool, error)
	Release(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) error
}

type snapshotService interface {
	Store(ctx context.Context, snapshotPath string, at time.Time, body []byte) (bool, error)
}

type outboundService interface {
	SendPurchaseOrder(ctx context.Context, purchaseOrderID int64) error
	SendCustomerOrder(ctx context.Context, orderID int64) error
	SyncProductByID(ctx context.Context, productID int64) error
}

type purchaseOrderService interface {
	Get(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, input internalpo.UpdateStatusInput) (*models.PurchaseOrder, error)
	ApproveMany(ctx context.Context, ids []int64, actor *outbox.ActorRef) error
}

// Dependencies is everything the HTTP surface is wired to.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             pinger
	Redis          redisStore
	GCS            pinger
	Messages       messageService
	DeliveryGuard  deliveryGuard
	Snapshots      snapshotService
	Outbound       outboundService
	PurchaseOrders purchaseOrderService
	Metrics        http.Handler
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.WebhookIPLimit)
	adminPolicy := middleware.NewRateLimitPolicy("admin", cfg.RateLimit.Window, cfg.RateLimit.AdminIPLimit)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "database", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: deps.Redis},
			controllers.Dependency{Name: "gcs", Pinger: deps.GCS},
		))
	})

	r.Get("/api/public/ping", controllers.PublicPing())

	// Surfaces the logistics center pushes to.
	r.Group(func(r chi.Router) {
		r.Use(middleware.WebhookToken(cfg.Orian.WebhookSecret, cfg.App.IsProd(), logg))
		r.Use(middleware.RateLimit(webhookPolicy, deps.Redis, logg))
		r.Post("/api/v1/webhooks/orian/{messageType}", webhookcontrollers.OrianMessage(deps.Messages, deps.DeliveryGuard, logg))
		r.Put("/api/v1/logistics/snapshots/*", logisticscontrollers.SnapshotUpload(deps.Snapshots, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(adminPolicy, deps.Redis, logg))
		r.Get("/ping", controllers.AdminPing())

		// Full paths keep the route pattern complete for idempotency matching.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleOps))
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Post("/logistics/purchase-orders/{purchaseOrderId}/send", logisticscontrollers.AdminSendPurchaseOrder(deps.Outbound, logg))
			r.Post("/logistics/customer-orders/{orderId}/send", logisticscontrollers.AdminSendCustomerOrder(deps.Outbound, logg))
			r.Post("/logistics/products/{productId}/sync", logisticscontrollers.AdminSyncProduct(deps.Outbound, logg))
			r.Post("/logistics/messages/{messageId}/replay", logisticscontrollers.AdminReplayMessage(deps.Messages, logg))

			r.Get("/purchase-orders/{purchaseOrderId}", pocontrollers.Detail(deps.PurchaseOrders, logg))
			r.Patch("/purchase-orders/{purchaseOrderId}/status", pocontrollers.UpdateStatus(deps.PurchaseOrders, logg))
			r.With(middleware.RequireRole(logg, enums.OperatorRoleAdmin)).
				Post("/purchase-orders/approve", pocontrollers.Approve(deps.PurchaseOrders, logg))
		})
	})

	return r
}
