package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

// Service exposes catalog management for administrators.
type Service interface {
	Get(ctx context.Context, actor inventory.Actor, productID uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, actor inventory.Actor, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, actor inventory.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	SetActive(ctx context.Context, actor inventory.Actor, productID uuid.UUID, active bool) (*ProductDTO, error)
	Delete(ctx context.Context, actor inventory.Actor, productID uuid.UUID) error
	SetMinimumStock(ctx context.Context, actor inventory.Actor, warehouseID, productID uuid.UUID, quantity decimal.Decimal) (*MinimumStockDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     *Repository
	lots     lots.Repository
	dbClient txRunner
}

// NewService constructs a product service instance.
func NewService(repo *Repository, lotRepo lots.Repository, dbClient txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if lotRepo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, lots: lotRepo, dbClient: dbClient}, nil
}

func (s *service) Get(ctx context.Context, actor inventory.Actor, productID uuid.UUID) (*ProductDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	product, err := s.load(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// Create inserts a product; SKUs are unique across the catalog.
func (s *service) Create(ctx context.Context, actor inventory.Actor, input CreateProductInput) (*ProductDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		SKU:         strings.TrimSpace(input.SKU),
		Name:        strings.TrimSpace(input.Name),
		Unit:        input.Unit,
		UnitsPerLot: input.UnitsPerLot,
		UnitPrice:   input.UnitPrice,
		IsActive:    input.IsActive,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, mapWriteError(err, "db: insert product")
	}
	return NewProductDTO(product), nil
}

func (s *service) Update(ctx context.Context, actor inventory.Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var updated *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.load(ctx, txRepo, productID)
		if err != nil {
			return err
		}
		applyUpdateToProduct(product, input)
		if err := txRepo.Save(ctx, product); err != nil {
			return mapWriteError(err, "db: update product")
		}
		updated = product
		return nil
	}); err != nil {
		return nil, wrapTxError(err, "update product")
	}
	return NewProductDTO(updated), nil
}

// SetActive toggles whether the product accepts new inflows.
func (s *service) SetActive(ctx context.Context, actor inventory.Actor, productID uuid.UUID, active bool) (*ProductDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var updated *models.Product
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := s.load(ctx, txRepo, productID)
		if err != nil {
			return err
		}
		if product.IsActive == active {
			updated = product
			return nil
		}
		product.IsActive = active
		if err := txRepo.Save(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		updated = product
		return nil
	}); err != nil {
		return nil, wrapTxError(err, "set product active")
	}
	return NewProductDTO(updated), nil
}

// Delete removes a product that no lot has ever referenced.
func (s *service) Delete(ctx context.Context, actor inventory.Actor, productID uuid.UUID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, txRepo, productID); err != nil {
			return err
		}
		count, err := s.lots.WithTx(tx).CountByProduct(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count lots")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "product has lots").
				WithDetails(map[string]any{"lot_count": count})
		}
		if err := txRepo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
		}
		return nil
	})
	return wrapTxError(err, "delete product")
}

// SetMinimumStock stores the low-stock threshold for a product in a warehouse.
// A zero quantity disables the alert without deleting the row.
func (s *service) SetMinimumStock(ctx context.Context, actor inventory.Actor, warehouseID, productID uuid.UUID, quantity decimal.Decimal) (*MinimumStockDTO, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum quantity cannot be negative")
	}

	var level *models.MinimumStock
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		exists, err := txRepo.WarehouseExists(ctx, warehouseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load warehouse")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "warehouse not found")
		}
		if _, err := s.load(ctx, txRepo, productID); err != nil {
			return err
		}
		if err := txRepo.UpsertMinimumStock(ctx, &models.MinimumStock{
			WarehouseID: warehouseID,
			ProductID:   productID,
			Quantity:    quantity,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert minimum stock")
		}
		stored, err := txRepo.FindMinimumStock(ctx, warehouseID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load minimum stock")
		}
		level = stored
		return nil
	}); err != nil {
		return nil, wrapTxError(err, "set minimum stock")
	}

	return &MinimumStockDTO{
		WarehouseID: level.WarehouseID,
		ProductID:   level.ProductID,
		Quantity:    level.Quantity,
		UpdatedAt:   level.UpdatedAt,
	}, nil
}

func (s *service) load(ctx context.Context, repo *Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func mapWriteError(err error, msg string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func wrapTxError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
