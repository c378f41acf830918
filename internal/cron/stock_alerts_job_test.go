package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

func TestStockAlertsJobEmitsAlertsAndGauges(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	warehouse := uuid.New()
	reader := &fakeStockReader{
		expiring: []lots.ExpiringLot{
			{LotID: uuid.New(), ProductID: uuid.New(), WarehouseID: warehouse, Quantity: decimal.NewFromInt(4), ExpiresAt: now.Add(48 * time.Hour)},
		},
		lowStock: []lots.LowStock{
			{WarehouseID: warehouse, ProductID: uuid.New(), OnHand: decimal.NewFromInt(2), Minimum: decimal.NewFromInt(10)},
			{WarehouseID: warehouse, ProductID: uuid.New(), OnHand: decimal.Zero, Minimum: decimal.NewFromInt(1)},
		},
	}
	emitter := &fakeEmitter{}
	gauges := &fakeGauges{}
	job := newStockAlertsJob(t, reader, emitter, nil, gauges)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reader.cutoff.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", reader.cutoff)
	}
	if got := len(emitter.events); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	if emitter.events[0].EventType != enums.EventLotExpiringSoon || emitter.events[0].AggregateType != enums.AggregateLot {
		t.Fatalf("unexpected first event %s/%s", emitter.events[0].EventType, emitter.events[0].AggregateType)
	}
	low, ok := emitter.events[1].Data.(payloads.LowStockDetectedEvent)
	if !ok {
		t.Fatalf("unexpected low stock payload %T", emitter.events[1].Data)
	}
	if !low.Minimum.Equal(decimal.NewFromInt(10)) || !low.DetectedAt.Equal(now) {
		t.Fatalf("unexpected low stock payload %+v", low)
	}
	if gauges.expiring[warehouse.String()] != 1 {
		t.Fatalf("expected expiring gauge 1, got %v", gauges.expiring)
	}
	if gauges.lowStock[warehouse.String()] != 2 {
		t.Fatalf("expected low stock gauge 2, got %v", gauges.lowStock)
	}
}

func TestStockAlertsJobDedupesPerDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	reader := &fakeStockReader{
		lowStock: []lots.LowStock{
			{WarehouseID: uuid.New(), ProductID: uuid.New(), OnHand: decimal.NewFromInt(1), Minimum: decimal.NewFromInt(5)},
		},
	}
	emitter := &fakeEmitter{}
	dedupe := &fakeDeduper{marked: map[string]bool{}}
	job := newStockAlertsJob(t, reader, emitter, dedupe, nil)
	job.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if got := len(emitter.events); got != 1 {
		t.Fatalf("expected a single alert across runs, got %d", got)
	}

	job.now = func() time.Time { return now.Add(24 * time.Hour) }
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run next day: %v", err)
	}
	if got := len(emitter.events); got != 2 {
		t.Fatalf("expected a new alert the next day, got %d", got)
	}
}

func TestStockAlertsJobRetriesAlertAfterEmitFailure(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	reader := &fakeStockReader{
		lowStock: []lots.LowStock{
			{WarehouseID: uuid.New(), ProductID: uuid.New(), OnHand: decimal.Zero, Minimum: decimal.NewFromInt(3)},
		},
	}
	emitter := &fakeEmitter{fail: 1}
	dedupe := &fakeDeduper{marked: map[string]bool{}}
	job := newStockAlertsJob(t, reader, emitter, dedupe, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected emit failure to surface")
	}
	if len(dedupe.marked) != 0 {
		t.Fatalf("expected mark to be cleared, got %v", dedupe.marked)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := len(emitter.events); got != 1 {
		t.Fatalf("expected alert on retry, got %d", got)
	}
}

func TestStockAlertsJobCombinesErrors(t *testing.T) {
	reader := &fakeStockReader{
		expiringErr: errors.New("expiring down"),
		lowStock: []lots.LowStock{
			{WarehouseID: uuid.New(), ProductID: uuid.New(), OnHand: decimal.Zero, Minimum: decimal.NewFromInt(1)},
		},
	}
	emitter := &fakeEmitter{}
	job := newStockAlertsJob(t, reader, emitter, nil, nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(emitter.events); got != 1 {
		t.Fatalf("low stock scan should still run, got %d events", got)
	}
}

func newStockAlertsJob(t *testing.T, reader stockReader, emitter outboxEmitter, dedupe alertDeduper, gauges stockGauges) *stockAlertsJob {
	t.Helper()
	params := StockAlertsJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:          passthroughTx{},
		Lots:        reader,
		Outbox:      emitter,
		WarningDays: 7,
	}
	if dedupe != nil {
		params.Dedupe = dedupe
	}
	if gauges != nil {
		params.Metrics = gauges
	}
	jobIface, err := NewStockAlertsJob(params)
	if err != nil {
		t.Fatalf("NewStockAlertsJob: %v", err)
	}
	job, ok := jobIface.(*stockAlertsJob)
	if !ok {
		t.Fatalf("expected stockAlertsJob, got %T", jobIface)
	}
	return job
}

type fakeStockReader struct {
	expiring    []lots.ExpiringLot
	expiringErr error
	lowStock    []lots.LowStock
	cutoff      time.Time
}

func (f *fakeStockReader) ListExpiringBefore(_ context.Context, cutoff time.Time) ([]lots.ExpiringLot, error) {
	f.cutoff = cutoff
	return f.expiring, f.expiringErr
}

func (f *fakeStockReader) ListLowStock(context.Context) ([]lots.LowStock, error) {
	return f.lowStock, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
	fail   int
}

func (f *fakeEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("outbox unavailable")
	}
	f.events = append(f.events, event)
	return nil
}

type fakeDeduper struct {
	marked map[string]bool
}

func (f *fakeDeduper) CheckAndMark(_ context.Context, scope, key string) (bool, error) {
	k := scope + "|" + key
	if f.marked[k] {
		return true, nil
	}
	f.marked[k] = true
	return false, nil
}

func (f *fakeDeduper) Forget(_ context.Context, scope, key string) error {
	delete(f.marked, scope+"|"+key)
	return nil
}

type fakeGauges struct {
	lowStock map[string]int
	expiring map[string]int
}

func (f *fakeGauges) SetLowStock(counts map[string]int) { f.lowStock = counts }
func (f *fakeGauges) SetExpiring(counts map[string]int) { f.expiring = counts }
