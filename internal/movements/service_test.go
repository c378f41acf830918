package movements

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/inventorytest"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/internal/placements"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

type countingMetrics struct {
	movements map[string]int
}

func (c *countingMetrics) IncMovement(movementType string) {
	if c.movements == nil {
		c.movements = map[string]int{}
	}
	c.movements[movementType]++
}

func newTestService(t *testing.T) (Service, *inventorytest.Fixture, *countingMetrics) {
	t.Helper()
	fx := inventorytest.New(t)
	placementSvc, err := placements.NewService(fx.DB)
	require.NoError(t, err)
	metrics := &countingMetrics{}
	svc, err := NewService(ServiceParams{
		DB:         fx.Client,
		Repo:       NewRepository(fx.DB),
		Lots:       lots.NewRepository(fx.DB),
		Ledger:     lots.NewLedger(nil, nil),
		Placements: placementSvc,
		Outbox:     fx.Outbox,
		Metrics:    metrics,
	})
	require.NoError(t, err)
	return svc, fx, metrics
}

func worker() inventory.Actor {
	return inventory.Actor{UserID: uuid.New(), Role: enums.MemberRoleWorker}
}

func admin() inventory.Actor {
	return inventory.Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestRecordInflowCreatesLotFromLotCount(t *testing.T) {
	svc, fx, metrics := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	supplier := fx.Supplier(t)
	product := fx.Product(t, 10, "2.50")

	dto, err := svc.RecordInflow(ctx, worker(), InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  supplier.ID,
		Lines:       []InflowLine{{ProductID: product.ID, Code: "A-1", LotCount: 3}},
	})
	require.NoError(t, err)
	require.Len(t, dto.Details, 1)

	lot := fx.Reload(t, &models.Lot{ID: dto.Details[0].LotID})
	assert.True(t, lot.Quantity.Equal(decimal.NewFromInt(30)), "quantity %s", lot.Quantity)
	assert.True(t, lot.PurchasePrice.Equal(decimal.RequireFromString("75")), "purchase price %s", lot.PurchasePrice)
	assert.True(t, lot.IsActive)
	assert.Nil(t, lot.InactivatedAt)
	assert.True(t, dto.TotalCost.Equal(decimal.RequireFromString("75")))

	var placement models.InventoryPlacement
	require.NoError(t, fx.DB.Where("lot_id = ?", lot.ID).First(&placement).Error)
	assert.Equal(t, warehouse.ID, placement.WarehouseID)

	events := fx.Events(t, enums.EventMovementRecorded)
	require.Len(t, events, 1)
	assert.Equal(t, lot.ID, events[0].AggregateID)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.MovementRecordedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, enums.MovementInflow, payload.MovementType)
	assert.True(t, payload.Quantity.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 1, metrics.movements["inflow"])
}

func TestRecordInflowMissingReferences(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	supplier := fx.Supplier(t)
	product := fx.Product(t, 10, "1")

	cases := []struct {
		name  string
		input InflowInput
	}{
		{"warehouse", InflowInput{WarehouseID: uuid.New(), SupplierID: supplier.ID, Lines: []InflowLine{{ProductID: product.ID, Code: "A", LotCount: 1}}}},
		{"supplier", InflowInput{WarehouseID: warehouse.ID, SupplierID: uuid.New(), Lines: []InflowLine{{ProductID: product.ID, Code: "A", LotCount: 1}}}},
		{"product", InflowInput{WarehouseID: warehouse.ID, SupplierID: supplier.ID, Lines: []InflowLine{{ProductID: product.ID, Code: "A", LotCount: 1}, {ProductID: uuid.New(), Code: "B", LotCount: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordInflow(ctx, worker(), tc.input)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, fx.DB.Model(&models.Lot{}).Count(&count).Error)
	assert.Zero(t, count, "failed inflows must not leave lots behind")
}

func TestRecordInflowRejectsInvalidLines(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)

	_, err := svc.RecordInflow(context.Background(), worker(), InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  uuid.New(),
		Lines:       []InflowLine{{ProductID: uuid.New(), Code: "A", LotCount: 0}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestRecordOutflowRejectsQuantityBeyondStoredScale(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)
	lot := fx.Lot(t, fx.Product(t, 10, "1"), warehouse, 10)

	_, err := svc.RecordOutflow(context.Background(), worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines:       []OutflowLine{{LotID: lot.ID, Quantity: decimal.RequireFromString("1.0005")}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.True(t, fx.Reload(t, lot).Quantity.Equal(decimal.NewFromInt(10)))
}

func TestRecordInflowOutsideActorScope(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)
	other := uuid.New()
	actor := worker()
	actor.WarehouseID = &other

	_, err := svc.RecordInflow(context.Background(), actor, InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  uuid.New(),
		Lines:       []InflowLine{{ProductID: uuid.New(), Code: "A", LotCount: 1}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
}

func TestRecordOutflowDeductsAndDeactivates(t *testing.T) {
	svc, fx, metrics := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	product := fx.Product(t, 10, "1")
	lot := fx.Lot(t, product, warehouse, 10)
	customer := fx.Customer(t)

	dto, err := svc.RecordOutflow(ctx, worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		CustomerID:  &customer.ID,
		Lines: []OutflowLine{
			{LotID: lot.ID, Quantity: decimal.NewFromInt(4)},
			{LotID: lot.ID, Quantity: decimal.NewFromInt(6)},
		},
	})
	require.NoError(t, err)
	require.Len(t, dto.Details, 2)
	assert.Equal(t, product.ID, dto.Details[0].ProductID)

	reloaded := fx.Reload(t, lot)
	assert.True(t, reloaded.Quantity.IsZero())
	assert.False(t, reloaded.IsActive)
	assert.NotNil(t, reloaded.InactivatedAt)
	assert.Len(t, fx.Events(t, enums.EventMovementRecorded), 2)
	assert.Equal(t, 1, metrics.movements["outflow"])
}

func TestRecordOutflowIsAllOrNothing(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	product := fx.Product(t, 10, "1")
	first := fx.Lot(t, product, warehouse, 10)
	second := fx.Lot(t, product, warehouse, 3)

	_, err := svc.RecordOutflow(ctx, worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines: []OutflowLine{
			{LotID: first.ID, Quantity: decimal.NewFromInt(5)},
			{LotID: second.ID, Quantity: decimal.NewFromInt(4)},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)

	assert.True(t, fx.Reload(t, first).Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, fx.Reload(t, second).Quantity.Equal(decimal.NewFromInt(3)))
	var outflows int64
	require.NoError(t, fx.DB.Model(&models.Outflow{}).Count(&outflows).Error)
	assert.Zero(t, outflows)
	assert.Empty(t, fx.Events(t, enums.EventMovementRecorded))
}

func TestRecordOutflowChecksAggregateQuantityPerLot(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)
	lot := fx.Lot(t, fx.Product(t, 1, "1"), warehouse, 5)

	_, err := svc.RecordOutflow(context.Background(), worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines: []OutflowLine{
			{LotID: lot.ID, Quantity: decimal.NewFromInt(3)},
			{LotID: lot.ID, Quantity: decimal.NewFromInt(3)},
		},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	assert.True(t, fx.Reload(t, lot).Quantity.Equal(decimal.NewFromInt(5)))
}

func TestRecordOutflowRequiresPlacementInWarehouse(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)
	elsewhere := fx.Warehouse(t)
	lot := fx.Lot(t, fx.Product(t, 1, "1"), elsewhere, 5)

	_, err := svc.RecordOutflow(context.Background(), worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines:       []OutflowLine{{LotID: lot.ID, Quantity: decimal.NewFromInt(1)}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotPlaced), "got %v", err)
}

func TestRecordOutflowUnknownLot(t *testing.T) {
	svc, fx, _ := newTestService(t)
	warehouse := fx.Warehouse(t)

	_, err := svc.RecordOutflow(context.Background(), worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines:       []OutflowLine{{LotID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestReverseOutflowRestoresExactQuantity(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	lot := fx.Lot(t, fx.Product(t, 1, "1"), warehouse, 8)

	dto, err := svc.RecordOutflow(ctx, worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines:       []OutflowLine{{LotID: lot.ID, Quantity: decimal.NewFromInt(8)}},
	})
	require.NoError(t, err)
	require.False(t, fx.Reload(t, lot).IsActive)

	require.NoError(t, svc.ReverseOutflow(ctx, admin(), dto.ID))

	reloaded := fx.Reload(t, lot)
	assert.True(t, reloaded.Quantity.Equal(decimal.NewFromInt(8)))
	assert.True(t, reloaded.IsActive)
	assert.Nil(t, reloaded.InactivatedAt)

	_, err = svc.GetOutflow(ctx, admin(), dto.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestReversalsRequireAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	supervisor := inventory.Actor{UserID: uuid.New(), Role: enums.MemberRoleSupervisor}

	assert.True(t, pkgerrors.IsCode(svc.ReverseOutflow(ctx, supervisor, uuid.New()), pkgerrors.CodeForbidden))
	assert.True(t, pkgerrors.IsCode(svc.ReverseInflow(ctx, worker(), uuid.New()), pkgerrors.CodeForbidden))
	assert.True(t, pkgerrors.IsCode(svc.ReverseInflow(ctx, admin(), uuid.New()), pkgerrors.CodeNotFound))
}

func TestReverseInflowRemovesLotsAndPlacements(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	product := fx.Product(t, 5, "1")

	dto, err := svc.RecordInflow(ctx, worker(), InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  fx.Supplier(t).ID,
		Lines: []InflowLine{
			{ProductID: product.ID, Code: "A", LotCount: 1},
			{ProductID: product.ID, Code: "B", LotCount: 2},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseInflow(ctx, admin(), dto.ID))

	var lotCount, placementCount, detailCount int64
	require.NoError(t, fx.DB.Model(&models.Lot{}).Count(&lotCount).Error)
	require.NoError(t, fx.DB.Model(&models.InventoryPlacement{}).Count(&placementCount).Error)
	require.NoError(t, fx.DB.Model(&models.InflowDetail{}).Count(&detailCount).Error)
	assert.Zero(t, lotCount)
	assert.Zero(t, placementCount)
	assert.Zero(t, detailCount)
}

func TestReverseInflowRefusedWhenLotConsumed(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)
	product := fx.Product(t, 5, "1")

	dto, err := svc.RecordInflow(ctx, worker(), InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  fx.Supplier(t).ID,
		Lines: []InflowLine{
			{ProductID: product.ID, Code: "A", LotCount: 1},
			{ProductID: product.ID, Code: "B", LotCount: 1},
		},
	})
	require.NoError(t, err)

	consumed := dto.Details[1].LotID
	_, err = svc.RecordOutflow(ctx, worker(), OutflowInput{
		WarehouseID: warehouse.ID,
		Lines:       []OutflowLine{{LotID: consumed, Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)

	err = svc.ReverseInflow(ctx, admin(), dto.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	var lotCount int64
	require.NoError(t, fx.DB.Model(&models.Lot{}).Count(&lotCount).Error)
	assert.EqualValues(t, 2, lotCount, "no lot may be deleted when one is consumed")
}

func TestGetInflowHidesOtherWarehouses(t *testing.T) {
	svc, fx, _ := newTestService(t)
	ctx := context.Background()
	warehouse := fx.Warehouse(t)

	dto, err := svc.RecordInflow(ctx, worker(), InflowInput{
		WarehouseID: warehouse.ID,
		SupplierID:  fx.Supplier(t).ID,
		Lines:       []InflowLine{{ProductID: fx.Product(t, 1, "1").ID, Code: "A", LotCount: 1}},
	})
	require.NoError(t, err)

	found, err := svc.GetInflow(ctx, worker(), dto.ID)
	require.NoError(t, err)
	assert.Len(t, found.Details, 1)

	other := uuid.New()
	scoped := worker()
	scoped.WarehouseID = &other
	_, err = svc.GetInflow(ctx, scoped, dto.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
