package snapshots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/storage/gcs"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type memoryStore struct {
	objects map[string][]byte
	failPut error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) CreateObject(_ context.Context, _ string, name, _ string, data []byte) error {
	if m.failPut != nil {
		return m.failPut
	}
	if _, ok := m.objects[name]; ok {
		return gcs.ErrObjectExists
	}
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) ObjectExists(_ context.Context, _ string, name string) (bool, error) {
	_, ok := m.objects[name]
	return ok, nil
}

func (m *memoryStore) ReadObject(_ context.Context, _ string, name string) ([]byte, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, gcs.ErrObjectNotFound
	}
	return data, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB, store *memoryStore) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      gormTx{db: conn},
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Storage: store,
		Bucket:  "bucket",
		Prefix:  "ORIAN",
		Logger:  logger.New(logger.Options{ServiceName: "snapshots-test", Output: io.Discard}),
		Clock:   func() time.Time { return time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func seedProducts(t *testing.T, conn *gorm.DB, skus ...string) {
	t.Helper()
	supplier := models.Supplier{Name: "supplier"}
	require.NoError(t, conn.Create(&supplier).Error)
	for _, sku := range skus {
		product := models.Product{SupplierID: supplier.ID, Name: "product " + sku, SKU: sku, CostPrice: decimal.NewFromInt(1), SalePrice: decimal.NewFromInt(2)}
		require.NoError(t, conn.Create(&product).Error)
	}
}

func snapshotXML(rows ...[2]string) string {
	var b strings.Builder
	b.WriteString("<DATACOLLECTION>")
	for _, row := range rows {
		fmt.Fprintf(&b, "<DATA><SKU>%s</SKU><QTY>%s</QTY></DATA>", row[0], row[1])
	}
	b.WriteString("</DATACOLLECTION>")
	return b.String()
}

func productLine(t *testing.T, conn *gorm.DB, sku string) *models.StockSnapshotLine {
	t.Helper()
	var product models.Product
	require.NoError(t, conn.Where("sku = ?", sku).First(&product).Error)
	if product.LogisticsSnapshotStockLineID == nil {
		return nil
	}
	var line models.StockSnapshotLine
	require.NoError(t, conn.First(&line, *product.LogisticsSnapshotStockLineID).Error)
	return &line
}

func TestParseLinesSingleAndMany(t *testing.T) {
	lines, err := ParseLines([]byte(snapshotXML([2]string{"1", "3.0000"})))
	require.NoError(t, err)
	require.Equal(t, []Line{{SKU: "1", Quantity: 3}}, lines)

	lines, err = ParseLines([]byte(snapshotXML([2]string{"1", "3.7"}, [2]string{"2", "0"})))
	require.NoError(t, err)
	require.Equal(t, []Line{{SKU: "1", Quantity: 3}, {SKU: "2", Quantity: 0}}, lines)

	lines, err = ParseLines([]byte("<DATACOLLECTION></DATACOLLECTION>"))
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestParseLinesRejectsBadInput(t *testing.T) {
	cases := []string{
		"not xml",
		snapshotXML([2]string{"", "1"}),
		snapshotXML([2]string{"1", "many"}),
	}
	for _, body := range cases {
		_, err := ParseLines([]byte(body))
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeMalformedMessage), body)
	}
}

func TestStoreArchivesOnceAndQueuesProcessing(t *testing.T) {
	conn := openTestDB(t)
	store := newMemoryStore()
	svc := newTestService(t, conn, store)
	at := time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)
	body := []byte(snapshotXML([2]string{"1", "5"}))

	stored, err := svc.Store(context.Background(), "stock/2024-08-01.xml", at, body)
	require.NoError(t, err)
	require.True(t, stored)
	require.Contains(t, store.objects, "ORIAN/stock/2024-08-01.xml")

	stored, err = svc.Store(context.Background(), "stock/2024-08-01.xml", at, body)
	require.NoError(t, err)
	require.False(t, stored)

	var events []models.OutboxEvent
	require.NoError(t, conn.Where("event_type = ?", enums.EventStockSnapshotStored).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, "ORIAN/stock/2024-08-01.xml", events[0].AggregateID)
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, newMemoryStore())
	at := time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)

	_, err := svc.Store(context.Background(), "../secrets", at, []byte("<x/>"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.Store(context.Background(), "a.xml", time.Time{}, []byte("<x/>"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.Store(context.Background(), "a.xml", at, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestStoreUploadFailureIsDependencyError(t *testing.T) {
	conn := openTestDB(t)
	store := newMemoryStore()
	store.failPut = errors.New("boom")
	svc := newTestService(t, conn, store)

	_, err := svc.Store(context.Background(), "a.xml", time.Now(), []byte("<x/>"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestProcessLinksProductsToSnapshot(t *testing.T) {
	conn := openTestDB(t)
	store := newMemoryStore()
	svc := newTestService(t, conn, store)
	seedProducts(t, conn, "1", "2", "3")
	at := time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)

	_, err := svc.Store(context.Background(), "a.xml", at, []byte(snapshotXML([2]string{"1", "5.0000"}, [2]string{"2", "7"})))
	require.NoError(t, err)
	snapshot, err := svc.Process(context.Background(), "a.xml", at)
	require.NoError(t, err)
	require.Equal(t, "a.xml", snapshot.SnapshotFilePath)

	line := productLine(t, conn, "1")
	require.NotNil(t, line)
	require.Equal(t, 5, line.Quantity)
	require.Equal(t, snapshot.ID, line.StockSnapshotID)
	require.Equal(t, 7, productLine(t, conn, "2").Quantity)
	require.Nil(t, productLine(t, conn, "3"))
}

func TestProcessIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	store := newMemoryStore()
	svc := newTestService(t, conn, store)
	seedProducts(t, conn, "1")
	at := time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)
	store.objects["ORIAN/a.xml"] = []byte(snapshotXML([2]string{"1", "5"}))

	first, err := svc.Process(context.Background(), "a.xml", at)
	require.NoError(t, err)
	second, err := svc.Process(context.Background(), "ORIAN/a.xml", at)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.StockSnapshotLine{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcessOlderSnapshotKeepsLatestLinks(t *testing.T) {
	conn := openTestDB(t)
	store := newMemoryStore()
	svc := newTestService(t, conn, store)
	seedProducts(t, conn, "1", "2")
	newer := time.Date(2024, 8, 2, 6, 0, 0, 0, time.UTC)
	older := time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC)
	store.objects["ORIAN/new.xml"] = []byte(snapshotXML([2]string{"1", "9"}))
	store.objects["ORIAN/old.xml"] = []byte(snapshotXML([2]string{"1", "4"}, [2]string{"2", "4"}))

	latest, err := svc.Process(context.Background(), "new.xml", newer)
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), "old.xml", older)
	require.NoError(t, err)

	line := productLine(t, conn, "1")
	require.Equal(t, latest.ID, line.StockSnapshotID)
	require.Equal(t, 9, line.Quantity)
	require.Nil(t, productLine(t, conn, "2"))
}

func TestProcessMissingFile(t *testing.T) {
	conn := openTestDB(t)
	svc := newTestService(t, conn, newMemoryStore())

	_, err := svc.Process(context.Background(), "missing.xml", time.Now())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
