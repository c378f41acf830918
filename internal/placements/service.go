package placements

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
)

// Service binds lots to the single warehouse holding them. Every method takes
// the caller's transaction; a nil tx runs against the base connection.
type Service struct {
	db *gorm.DB
}

func NewService(conn *gorm.DB) (*Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection required")
	}
	return &Service{db: conn}, nil
}

func (s *Service) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// Place creates the binding. A lot that is already placed anywhere fails with
// DUPLICATE_PLACEMENT.
func (s *Service) Place(ctx context.Context, tx *gorm.DB, warehouseID, lotID uuid.UUID) (*models.InventoryPlacement, error) {
	existing, err := s.FindByLot(ctx, tx, lotID)
	if err != nil {
		return nil, inventory.Dependency(err, "load placement")
	}
	if existing != nil {
		return nil, inventory.DuplicatePlacement(warehouseID, lotID)
	}

	placement := &models.InventoryPlacement{WarehouseID: warehouseID, LotID: lotID}
	if err := s.conn(ctx, tx).Create(placement).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, inventory.DuplicatePlacement(warehouseID, lotID)
		}
		return nil, inventory.Dependency(err, "insert placement")
	}
	return placement, nil
}

// Lookup returns the binding of lotID to warehouseID or fails with NOT_PLACED.
func (s *Service) Lookup(ctx context.Context, tx *gorm.DB, warehouseID, lotID uuid.UUID) (*models.InventoryPlacement, error) {
	var placement models.InventoryPlacement
	err := s.conn(ctx, tx).
		Where("warehouse_id = ? AND lot_id = ?", warehouseID, lotID).
		First(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotPlaced(warehouseID, lotID)
		}
		return nil, inventory.Dependency(err, "load placement")
	}
	return &placement, nil
}

// FindByLot returns the lot's placement, or nil when it has none.
func (s *Service) FindByLot(ctx context.Context, tx *gorm.DB, lotID uuid.UUID) (*models.InventoryPlacement, error) {
	var placement models.InventoryPlacement
	err := s.conn(ctx, tx).Where("lot_id = ?", lotID).First(&placement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &placement, nil
}

// DeleteByLots removes the placements of the given lots.
func (s *Service) DeleteByLots(ctx context.Context, tx *gorm.DB, lotIDs []uuid.UUID) error {
	if len(lotIDs) == 0 {
		return nil
	}
	if err := s.conn(ctx, tx).Where("lot_id IN ?", lotIDs).Delete(&models.InventoryPlacement{}).Error; err != nil {
		return inventory.Dependency(err, "delete placements")
	}
	return nil
}
