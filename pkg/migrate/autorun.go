package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// BENEFITS_DB_AUTO_MIGRATE is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.DB.AutoMigrate {
		return nil
	}

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "running gorm auto-migrate for sqlite (dev auto-run)")
		if err := AutoMigrateModels(client.DB()); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations(), logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "applying embedded migrations (dev auto-run)")
	return runner.Up(ctx)
}

// AutoMigrateModels creates the logistics schema from the gorm models.
// Used for sqlite dev databases, which cannot run the Postgres migrations.
func AutoMigrateModels(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Supplier{},
		&models.Product{},
		&models.ProductBundleItem{},
		&models.Organization{},
		&models.EmployeeGroup{},
		&models.EmployeeGroupCampaign{},
		&models.Employee{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderLine{},
		&models.CustomerOrder{},
		&models.CustomerOrderLine{},
		&models.LogisticsCenterMessage{},
		&models.InboundReceipt{},
		&models.InboundReceiptLine{},
		&models.OrderStatusEvent{},
		&models.StockSnapshot{},
		&models.StockSnapshotLine{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	)
}
