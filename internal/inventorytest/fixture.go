// Package inventorytest builds an in-memory inventory database for service
// tests.
package inventorytest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
)

// Fixture holds a migrated sqlite database and the shared collaborators.
type Fixture struct {
	DB     *gorm.DB
	Client *db.Client
	Outbox *outbox.Service
}

// New opens a private in-memory database migrated with every model.
func New(t *testing.T) *Fixture {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &Fixture{
		DB:     conn,
		Client: db.NewFromConn(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	}
}

func (f *Fixture) Warehouse(t *testing.T) *models.Warehouse {
	t.Helper()
	w := &models.Warehouse{Name: "WH-" + uuid.NewString()[:6], IsActive: true}
	require.NoError(t, f.DB.Create(w).Error)
	return w
}

func (f *Fixture) Supplier(t *testing.T) *models.Supplier {
	t.Helper()
	s := &models.Supplier{Name: "Supplier " + uuid.NewString()[:6]}
	require.NoError(t, f.DB.Create(s).Error)
	return s
}

func (f *Fixture) Customer(t *testing.T) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: "Customer " + uuid.NewString()[:6]}
	require.NoError(t, f.DB.Create(c).Error)
	return c
}

// Product creates an active product with the given lot size and unit price.
func (f *Fixture) Product(t *testing.T, unitsPerLot int, unitPrice string) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU:         "SKU-" + uuid.NewString()[:8],
		Name:        "Product",
		Unit:        enums.UnitEach,
		UnitsPerLot: unitsPerLot,
		UnitPrice:   decimal.RequireFromString(unitPrice),
		IsActive:    true,
	}
	require.NoError(t, f.DB.Create(p).Error)
	return p
}

// Lot creates a lot of product placed in warehouse.
func (f *Fixture) Lot(t *testing.T, product *models.Product, warehouse *models.Warehouse, quantity int64) *models.Lot {
	t.Helper()
	lot := &models.Lot{
		ProductID:     product.ID,
		Code:          "L-" + uuid.NewString()[:8],
		Quantity:      decimal.NewFromInt(quantity),
		PurchasePrice: product.LotValue(decimal.NewFromInt(1)),
		IsActive:      quantity > 0,
	}
	if quantity <= 0 {
		now := time.Now().UTC()
		lot.InactivatedAt = &now
	}
	require.NoError(t, f.DB.Create(lot).Error)
	require.NoError(t, f.DB.Create(&models.InventoryPlacement{WarehouseID: warehouse.ID, LotID: lot.ID}).Error)
	return lot
}

// Reload reads the lot back from the database.
func (f *Fixture) Reload(t *testing.T, lot *models.Lot) *models.Lot {
	t.Helper()
	var out models.Lot
	require.NoError(t, f.DB.First(&out, "id = ?", lot.ID).Error)
	return &out
}

// Events returns the outbox rows of eventType in insertion order.
func (f *Fixture) Events(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.DB.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}
