// Package bigquery wraps the BigQuery client used to mirror inventory
// movements into an analytics table.
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
	"google.golang.org/api/option"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var ErrNotInitialized = errors.New("bigquery client not initialized")

// MovementsSchema is the layout of the movements table. Quantities are
// carried as strings to keep decimal precision.
var MovementsSchema = bigquery.Schema{
	{Name: "event_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "movement_type", Type: bigquery.StringFieldType, Required: true},
	{Name: "product_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "lot_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "warehouse_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "quantity", Type: bigquery.StringFieldType, Required: true},
	{Name: "value", Type: bigquery.StringFieldType},
	{Name: "reason", Type: bigquery.StringFieldType},
	{Name: "actor_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "reference_id", Type: bigquery.StringFieldType},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "payload", Type: bigquery.JSONFieldType},
}

// Client streams rows into the configured dataset.
type Client struct {
	bq        *bigquery.Client
	dataset   *bigquery.Dataset
	movements string
}

// NewClient connects to BigQuery and checks that the dataset exists. With
// cfg.CreateTables set a missing movements table is created, partitioned by
// day on occurred_at; otherwise a missing table is an error.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.MovementsTable)
	switch {
	case project == "":
		return nil, errors.New("gcp project id is required")
	case dataset == "":
		return nil, errors.New("bigquery dataset is required")
	case table == "":
		return nil, errors.New("bigquery movements table is required")
	}

	bq, err := bigquery.NewClient(ctx, project, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(dataset), movements: table}

	if err := c.prepare(ctx, cfg.CreateTables); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": dataset,
			"table":   table,
		}), "bigquery client initialized")
	}
	return c, nil
}

func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if file := strings.TrimSpace(gcp.ApplicationCredentials); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, createTables bool) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMetadataErr("dataset", c.dataset.DatasetID, err)
	}
	table := c.dataset.Table(c.movements)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !createTables || !isNotFound(err) {
		return describeMetadataErr("table", c.movements, err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           MovementsSchema,
		TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: "occurred_at"},
		Clustering:       &bigquery.Clustering{Fields: []string{"warehouse_id", "product_id"}},
	}
	if err := table.Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("creating table %q: %w", c.movements, err)
	}
	return nil
}

func describeMetadataErr(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Ping checks that the movements table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	if _, err := c.dataset.Table(c.movements).Metadata(ctx); err != nil {
		return describeMetadataErr("table", c.movements, err)
	}
	return nil
}

func (c *Client) MovementsTable() string {
	if c == nil {
		return ""
	}
	return c.movements
}

// InsertRows streams rows into table. Rows implementing
// bigquery.ValueSaver control their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return ErrNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errors.New("bigquery table name is required")
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

func isNotFound(err error) bool { return apiCode(err) == http.StatusNotFound }

func isConflict(err error) bool { return apiCode(err) == http.StatusConflict }

func apiCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
