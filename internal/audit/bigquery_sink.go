package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RetryPolicy controls how many times a streaming insert is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQuerySink streams each movement into the movements table. The outbox
// event id is the insert id, so a retried delivery is deduplicated by
// BigQuery and yields the same transaction id.
type BigQuerySink struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewBigQuerySink(client tableInserter, table string, retry RetryPolicy) (*BigQuerySink, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("movements table is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}
	return &BigQuerySink{client: client, table: table, retry: retry, sleep: sleepContext}, nil
}

func (s *BigQuerySink) Name() string { return config.AuditSinkBigQuery }

func (s *BigQuerySink) Record(ctx context.Context, movement Movement) (string, error) {
	row, err := newMovementRow(movement)
	if err != nil {
		return "", err
	}
	if err := s.insertWithRetry(ctx, []any{row}); err != nil {
		return "", err
	}
	return "BQ-" + movement.EventID.String(), nil
}

func (s *BigQuerySink) insertWithRetry(ctx context.Context, rows []any) error {
	attempts := 0
	backoff := s.retry.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.client.InsertRows(ctx, s.table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= s.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows: %w", s.table, err)
		}
		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = minDuration(backoff*2, s.retry.MaximumBackoff)
	}
}

// movementRow is one row of the movements table.
type movementRow struct {
	insertID string
	values   map[string]cbigquery.Value
}

func newMovementRow(m Movement) (*movementRow, error) {
	payload, err := m.payload()
	if err != nil {
		return nil, fmt.Errorf("marshal movement: %w", err)
	}
	values := map[string]cbigquery.Value{
		"event_id":      m.EventID.String(),
		"movement_type": m.MovementType.String(),
		"product_id":    m.ProductID.String(),
		"lot_id":        m.LotID.String(),
		"warehouse_id":  m.WarehouseID.String(),
		"quantity":      m.Quantity.String(),
		"actor_id":      m.ActorID.String(),
		"reference_id":  m.ReferenceID.String(),
		"occurred_at":   m.OccurredAt,
		"payload":       string(payload),
	}
	if m.Value != nil {
		values["value"] = m.Value.String()
	}
	if m.Reason != "" {
		values["reason"] = m.Reason
	}
	return &movementRow{insertID: m.EventID.String(), values: values}, nil
}

// Save implements bigquery.ValueSaver.
func (r *movementRow) Save() (map[string]cbigquery.Value, string, error) {
	return r.values, r.insertID, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
