package snapshots

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// Repository stores stock snapshots and links products to their latest stock
// line.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertSnapshot(ctx context.Context, snapshot *models.StockSnapshot) (*models.StockSnapshot, error)
	UpsertLine(ctx context.Context, line *models.StockSnapshotLine) error
	LatestSnapshot(ctx context.Context, center enums.LogisticsCenter) (*models.StockSnapshot, error)
	LinkProductsToSnapshot(ctx context.Context, snapshotID int64) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertSnapshot is keyed by (center, snapshot time). A reprocessed snapshot
// keeps its id and refreshes the file path and processing time.
func (r *repository) UpsertSnapshot(ctx context.Context, snapshot *models.StockSnapshot) (*models.StockSnapshot, error) {
	db := r.db.WithContext(ctx)
	snapshot.SnapshotDateTime = snapshot.SnapshotDateTime.UTC()
	err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "center"}, {Name: "snapshot_date_time"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot_file_path", "processed_date_time"}),
	}).Create(snapshot).Error
	if err != nil {
		return nil, err
	}

	var stored models.StockSnapshot
	if err := db.Where("center = ? AND snapshot_date_time = ?", snapshot.Center, snapshot.SnapshotDateTime).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpsertLine is keyed by (snapshot, sku).
func (r *repository) UpsertLine(ctx context.Context, line *models.StockSnapshotLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_snapshot_id"}, {Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(line).Error
}

func (r *repository) LatestSnapshot(ctx context.Context, center enums.LogisticsCenter) (*models.StockSnapshot, error) {
	var snapshot models.StockSnapshot
	if err := r.db.WithContext(ctx).
		Where("center = ?", center).
		Order("snapshot_date_time DESC").
		First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LinkProductsToSnapshot points every product at its SKU's line in the
// snapshot, or clears the link when the snapshot does not list the SKU.
func (r *repository) LinkProductsToSnapshot(ctx context.Context, snapshotID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Product{}).
		Updates(map[string]any{
			"logistics_snapshot_stock_line_id": gorm.Expr(
				"(SELECT stock_snapshot_lines.id FROM stock_snapshot_lines WHERE stock_snapshot_lines.stock_snapshot_id = ? AND stock_snapshot_lines.sku = products.sku)",
				snapshotID,
			),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
