package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

const (
	defaultExpiryWarningDays = 30
	lowStockScope            = "alerts:low_stock"
	lotExpiringScope         = "alerts:lot_expiring"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReader interface {
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]lots.ExpiringLot, error)
	ListLowStock(ctx context.Context) ([]lots.LowStock, error)
}

// alertDeduper reports whether a natural key was already marked and marks it otherwise.
type alertDeduper interface {
	CheckAndMark(ctx context.Context, scope, key string) (bool, error)
	Forget(ctx context.Context, scope, key string) error
}

type stockGauges interface {
	SetLowStock(counts map[string]int)
	SetExpiring(counts map[string]int)
}

// StockAlertsJobParams configures the expiry and low-stock scan. Dedupe and
// Metrics are optional; without Dedupe every run emits its alerts again.
type StockAlertsJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Lots        stockReader
	Outbox      outboxEmitter
	Dedupe      alertDeduper
	Metrics     stockGauges
	WarningDays int
}

func NewStockAlertsJob(params StockAlertsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Lots == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	days := params.WarningDays
	if days <= 0 {
		days = defaultExpiryWarningDays
	}
	return &stockAlertsJob{
		logg:        params.Logger,
		db:          params.DB,
		lots:        params.Lots,
		outbox:      params.Outbox,
		dedupe:      params.Dedupe,
		metrics:     params.Metrics,
		warningDays: days,
		now:         time.Now,
	}, nil
}

type stockAlertsJob struct {
	logg        *logger.Logger
	db          txRunner
	lots        stockReader
	outbox      outboxEmitter
	dedupe      alertDeduper
	metrics     stockGauges
	warningDays int
	now         func() time.Time
}

func (j *stockAlertsJob) Name() string { return "stock-alerts" }

func (j *stockAlertsJob) Run(ctx context.Context) error {
	return multierr.Combine(
		j.checkExpiring(ctx),
		j.checkLowStock(ctx),
	)
}

func (j *stockAlertsJob) checkExpiring(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(time.Duration(j.warningDays) * 24 * time.Hour)
	rows, err := j.lots.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query expiring lots: %w", err)
	}

	counts := make(map[string]int)
	emitted := 0
	var errs error
	for _, row := range rows {
		counts[row.WarehouseID.String()]++
		key := fmt.Sprintf("%s:%s", row.LotID, now.Format("2006-01-02"))
		seen, err := j.seen(ctx, lotExpiringScope, key)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dedupe lot %s: %w", row.LotID, err))
			continue
		}
		if seen {
			continue
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventLotExpiringSoon,
			AggregateType: enums.AggregateLot,
			AggregateID:   row.LotID,
			Data: payloads.LotExpiringSoonEvent{
				LotID:       row.LotID,
				ProductID:   row.ProductID,
				WarehouseID: row.WarehouseID,
				Quantity:    row.Quantity,
				ExpiresAt:   row.ExpiresAt,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := j.emit(ctx, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("queue expiry alert for lot %s: %w", row.LotID, err))
			j.forget(ctx, lotExpiringScope, key)
			continue
		}
		emitted++
	}
	if j.metrics != nil {
		j.metrics.SetExpiring(counts)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"warning_days": j.warningDays,
		"lots":         len(rows),
		"emitted":      emitted,
	})
	j.logg.Info(logCtx, "expiring lot scan complete")
	return errs
}

func (j *stockAlertsJob) checkLowStock(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.lots.ListLowStock(ctx)
	if err != nil {
		return fmt.Errorf("query low stock: %w", err)
	}

	counts := make(map[string]int)
	emitted := 0
	var errs error
	for _, row := range rows {
		counts[row.WarehouseID.String()]++
		key := fmt.Sprintf("%s:%s:%s", row.ProductID, row.WarehouseID, now.Format("2006-01-02"))
		seen, err := j.seen(ctx, lowStockScope, key)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dedupe product %s: %w", row.ProductID, err))
			continue
		}
		if seen {
			continue
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateProduct,
			AggregateID:   row.ProductID,
			Data: payloads.LowStockDetectedEvent{
				WarehouseID: row.WarehouseID,
				ProductID:   row.ProductID,
				OnHand:      row.OnHand,
				Minimum:     row.Minimum,
				DetectedAt:  now,
			},
			Version:    1,
			OccurredAt: now,
		}
		if err := j.emit(ctx, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("queue low stock alert for product %s: %w", row.ProductID, err))
			j.forget(ctx, lowStockScope, key)
			continue
		}
		emitted++
	}
	if j.metrics != nil {
		j.metrics.SetLowStock(counts)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"products": len(rows),
		"emitted":  emitted,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}

func (j *stockAlertsJob) seen(ctx context.Context, scope, key string) (bool, error) {
	if j.dedupe == nil {
		return false, nil
	}
	return j.dedupe.CheckAndMark(ctx, scope, key)
}

// forget clears a mark whose alert never reached the outbox so the next
// scan retries it.
func (j *stockAlertsJob) forget(ctx context.Context, scope, key string) {
	if j.dedupe == nil {
		return
	}
	if err := j.dedupe.Forget(ctx, scope, key); err != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{"scope": scope, "key": key})
		j.logg.Warn(logCtx, "alert mark not cleared")
	}
}

func (j *stockAlertsJob) emit(ctx context.Context, event outbox.DomainEvent) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, event)
	})
}
