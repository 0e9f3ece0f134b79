package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
)

type statusRow struct {
	EventID    string    `bigquery:"event_id"`
	OccurredAt time.Time `bigquery:"occurred_at"`
	Lag        bigquery.NullInt64 `bigquery:"arrival_lag_seconds"`
}

func TestTableMetadataInfersPartitionedSchema(t *testing.T) {
	meta, err := tableMetadata(Table{Name: "logistics_status_events", Row: statusRow{}, PartitionField: "occurred_at"})
	require.NoError(t, err)
	require.Len(t, meta.Schema, 3)
	require.Equal(t, "occurred_at", meta.Schema[1].Name)
	require.Equal(t, bigquery.TimestampFieldType, meta.Schema[1].Type)
	require.False(t, meta.Schema[2].Required)
	require.Equal(t, "occurred_at", meta.TimePartitioning.Field)

	meta, err = tableMetadata(Table{Name: "plain", Row: statusRow{}})
	require.NoError(t, err)
	require.Nil(t, meta.TimePartitioning)

	_, err = tableMetadata(Table{Name: "bad", Row: 42})
	require.Error(t, err)
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.BigQueryConfig{Dataset: "d"}, nil)
	require.ErrorContains(t, err, "project id")
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: " "}, nil)
	require.ErrorContains(t, err, "dataset")
	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil, Table{Name: " "})
	require.ErrorContains(t, err, "table name")
}

func TestAPIErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("read: %w", &googleapi.Error{Code: http.StatusNotFound})
	require.True(t, notFound(wrapped))
	require.False(t, alreadyExists(wrapped))
	require.True(t, alreadyExists(&googleapi.Error{Code: http.StatusConflict}))
	require.False(t, notFound(errors.New("dial tcp: timeout")))
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	require.Error(t, c.Ping(context.Background()))
	require.Error(t, c.InsertRows(context.Background(), "t", []any{statusRow{}}))
	require.NoError(t, c.Close())
}
