// Package bigquery wraps the BigQuery client used for logistics analytics.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/gcp"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const metadataTimeout = 10 * time.Second

// Table describes a fact table. Row is a zero value of the struct inserted
// into it; its bigquery tags define the schema when the table is created.
type Table struct {
	Name           string
	Row            any
	PartitionField string
}

type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []Table
	create  bool
	logg    *logger.Logger
}

// NewClient connects to the configured dataset and makes sure every table
// exists, creating missing ones when cfg.CreateTables is set.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...Table) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, errors.New("bigquery dataset is required")
	}
	for i := range tables {
		tables[i].Name = strings.TrimSpace(tables[i].Name)
		if tables[i].Name == "" {
			return nil, errors.New("bigquery table name is required")
		}
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(dataset), tables: tables, create: cfg.CreateTables, logg: logg}
	if err := c.ensure(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "tables": len(tables)}), "bigquery ready")
	}
	return c, nil
}

func (c *Client) ensure(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if notFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("read dataset %q: %w", c.dataset.DatasetID, err)
	}
	for _, table := range c.tables {
		_, err := c.dataset.Table(table.Name).Metadata(ctx)
		switch {
		case err == nil:
			continue
		case !notFound(err):
			return fmt.Errorf("read table %q: %w", table.Name, err)
		case !c.create:
			return fmt.Errorf("table %q does not exist", table.Name)
		}
		meta, err := tableMetadata(table)
		if err != nil {
			return err
		}
		if err := c.dataset.Table(table.Name).Create(ctx, meta); err != nil && !alreadyExists(err) {
			return fmt.Errorf("create table %q: %w", table.Name, err)
		}
		if c.logg != nil {
			c.logg.Info(c.logg.WithField(ctx, "table", table.Name), "bigquery table created")
		}
	}
	return nil
}

func tableMetadata(table Table) (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(table.Row)
	if err != nil {
		return nil, fmt.Errorf("infer schema for %q: %w", table.Name, err)
	}
	meta := &bigquery.TableMetadata{Schema: schema}
	if table.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: table.PartitionField}
	}
	return meta, nil
}

// Ping re-reads the dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.bq == nil {
		return errors.New("bigquery client not initialized")
	}
	return c.ensure(ctx)
}

// InsertRows streams rows into table. Rows must be structs or pointers to
// structs with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errors.New("bigquery client not initialized")
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func notFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
