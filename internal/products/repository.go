package product

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/warehouse-backend/internal/repo"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
)

// Repository persists catalog products and their per-warehouse minimums.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Save(product).Error
}

// Delete removes the product together with its minimum stock rows.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.DB(ctx)
	if err := conn.Where("product_id = ?", id).Delete(&models.MinimumStock{}).Error; err != nil {
		return err
	}
	return conn.Delete(&models.Product{}, "id = ?", id).Error
}

func (r *Repository) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.Exists(ctx, &models.Warehouse{}, id)
}

// UpsertMinimumStock writes the threshold for (warehouse, product).
func (r *Repository) UpsertMinimumStock(ctx context.Context, level *models.MinimumStock) error {
	level.UpdatedAt = time.Now().UTC()
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "warehouse_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(level).Error
}

func (r *Repository) FindMinimumStock(ctx context.Context, warehouseID, productID uuid.UUID) (*models.MinimumStock, error) {
	var level models.MinimumStock
	err := r.DB(ctx).
		Where("warehouse_id = ? AND product_id = ?", warehouseID, productID).
		First(&level).Error
	if err != nil {
		return nil, err
	}
	return &level, nil
}
