package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
)

func TestLogisticsMigrationContainsIdempotencyKeys(t *testing.T) {
	content := readMigration(t, "*_create_logistics_tables.sql")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS logistics_center_messages",
		"ON inbound_receipts (center, receipt_code)",
		"ON inbound_receipt_lines (receipt_id, receipt_line)",
		"ON order_status_events (entity_kind, entity_id, status, status_date_time)",
		"ON stock_snapshots (center, snapshot_date_time)",
		"ON stock_snapshot_lines (stock_snapshot_id, sku)",
		"DROP TABLE IF EXISTS logistics_center_messages",
	} {
		require.Contains(t, content, sub)
	}
}

func TestCatalogMigrationEnforcesUniqueSKU(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")
	require.Contains(t, content, "CREATE UNIQUE INDEX IF NOT EXISTS products_sku_key ON products (sku)")
	require.Contains(t, content, "DROP TABLE IF EXISTS products")
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))

	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	up := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad name": {"create_things.sql": {Data: []byte(up)}},
		"duplicate version": {
			"20250101000000_a.sql": {Data: []byte(up)},
			"20250101000000_b.sql": {Data: []byte(up)},
		},
		"missing down": {"20250101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"unbalanced block": {"20250101000000_a.sql": {Data: []byte(up + "-- +goose StatementBegin\n")}},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, migrate.Validate(files))
		})
	}
	require.NoError(t, migrate.Validate(fstest.MapFS{
		"20250101000000_a.sql": {Data: []byte(up)},
		"README.md":            {Data: []byte("notes")},
	}))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add carrier to Shipments!", at)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20251001083000_add_carrier_to_shipments.sql"), path)
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.CreateSQLMigration(dir, "add carrier to shipments", at)
	require.Error(t, err)
	_, err = migrate.CreateSQLMigration(dir, "???", at)
	require.Error(t, err)
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := fs.Glob(migrate.Migrations(), pattern)
	require.NoError(t, err)
	require.NotEmpty(t, matches, pattern)
	data, err := fs.ReadFile(migrate.Migrations(), matches[0])
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
