package lots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
)

type placementFinder interface {
	FindByLot(ctx context.Context, tx *gorm.DB, lotID uuid.UUID) (*models.InventoryPlacement, error)
}

// LotDTO is the read model for a lot and its placement.
type LotDTO struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"product_id"`
	WarehouseID   *uuid.UUID      `json:"warehouse_id,omitempty"`
	Code          string          `json:"code"`
	Quantity      decimal.Decimal `json:"quantity"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	IsActive      bool            `json:"is_active"`
	InactivatedAt *time.Time      `json:"inactivated_at,omitempty"`
}

// Service exposes lot reads.
type Service interface {
	Get(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*LotDTO, error)
}

type service struct {
	repo       Repository
	placements placementFinder
}

func NewService(repo Repository, placements placementFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if placements == nil {
		return nil, fmt.Errorf("placement finder required")
	}
	return &service{repo: repo, placements: placements}, nil
}

func (s *service) Get(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*LotDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotFound("lot", id)
		}
		return nil, inventory.Dependency(err, "load lot")
	}

	dto := &LotDTO{
		ID:            lot.ID,
		ProductID:     lot.ProductID,
		Code:          lot.Code,
		Quantity:      lot.Quantity,
		ExpiresAt:     lot.ExpiresAt,
		PurchasePrice: lot.PurchasePrice,
		IsActive:      lot.IsActive,
		InactivatedAt: lot.InactivatedAt,
	}
	placement, err := s.placements.FindByLot(ctx, nil, id)
	if err != nil {
		return nil, inventory.Dependency(err, "load placement")
	}
	if placement != nil {
		if !actor.CanAccess(placement.WarehouseID) {
			return nil, inventory.NotFound("lot", id)
		}
		warehouseID := placement.WarehouseID
		dto.WarehouseID = &warehouseID
	}
	return dto, nil
}
