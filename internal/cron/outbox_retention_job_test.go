package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/migrate"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func openRetentionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func seedOutboxRow(t *testing.T, conn *gorm.DB, created time.Time, published *time.Time, attempts int) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCustomerOrderReady,
		AggregateType: enums.AggregateCustomerOrder,
		AggregateID:   "1",
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     created,
		PublishedAt:   published,
		AttemptCount:  attempts,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row.ID
}

func seedDeadLetter(t *testing.T, conn *gorm.DB, failed time.Time, reason enums.OutboxDLQErrorReason) {
	t.Helper()
	require.NoError(t, conn.Create(&models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     enums.EventPurchaseOrderApproved,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   "9",
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   reason,
		FailedAt:      failed,
	}).Error)
}

func TestOutboxRetentionJobPrunesByHorizon(t *testing.T) {
	conn := openRetentionDB(t)
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -45)
	recent := now.AddDate(0, 0, -5)

	seedOutboxRow(t, conn, old, &old, 1)
	keptRecent := seedOutboxRow(t, conn, recent, &recent, 1)
	keptUnrelayed := seedOutboxRow(t, conn, old, nil, 2)
	seedOutboxRow(t, conn, old, nil, 10)

	seedDeadLetter(t, conn, now.AddDate(0, 0, -120), enums.OutboxDLQReasonMaxAttempts)
	seedDeadLetter(t, conn, old, enums.OutboxDLQReasonNonRetryable)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "retention-test", Output: io.Discard}),
		DB:          gormTx{db: conn},
		Outbox:      outbox.NewRepository(conn),
		DeadLetters: outbox.NewDLQRepository(conn),
		MaxAttempts: 10,
		Clock:       func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Order("created_at").Pluck("id", &ids).Error)
	require.ElementsMatch(t, []uuid.UUID{keptRecent, keptUnrelayed}, ids)

	remaining, err := outbox.NewDLQRepository(conn).CountByReason(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, map[enums.OutboxDLQErrorReason]int64{enums.OutboxDLQReasonNonRetryable: 1}, remaining)
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, errors.New("boom")
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "retention-test", Output: io.Discard}),
		DB:          passthroughTx{},
		Outbox:      failingPruner{},
		DeadLetters: outbox.NewDLQRepository(nil),
	})
	require.NoError(t, err)
	require.ErrorContains(t, job.Run(context.Background()), "prune outbox")
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "retention-test", Output: io.Discard}),
		DB:     passthroughTx{},
		Outbox: failingPruner{},
	})
	require.Error(t, err)
}
