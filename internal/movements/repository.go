package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/repo"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
)

// Repository persists inflow and outflow records and resolves the entities
// they reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error)
	SupplierExists(ctx context.Context, id uuid.UUID) (bool, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)

	CreateInflow(ctx context.Context, inflow *models.Inflow) error
	CreateInflowDetail(ctx context.Context, detail *models.InflowDetail) error
	FindInflow(ctx context.Context, id uuid.UUID, lock bool) (*models.Inflow, error)
	DeleteInflow(ctx context.Context, id uuid.UUID) error

	CreateOutflow(ctx context.Context, outflow *models.Outflow) error
	FindOutflow(ctx context.Context, id uuid.UUID, lock bool) (*models.Outflow, error)
	DeleteOutflow(ctx context.Context, id uuid.UUID) error

	LotsWithConsumption(ctx context.Context, lotIDs []uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.Exists(ctx, &models.Warehouse{}, id)
}

func (r *repository) SupplierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.Exists(ctx, &models.Supplier{}, id)
}

func (r *repository) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.Exists(ctx, &models.Customer{}, id)
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return repo.IndexByID(ctx, r.Base, ids, func(p models.Product) uuid.UUID { return p.ID })
}

func (r *repository) CreateInflow(ctx context.Context, inflow *models.Inflow) error {
	return r.DB(ctx).Omit("Details").Create(inflow).Error
}

func (r *repository) CreateInflowDetail(ctx context.Context, detail *models.InflowDetail) error {
	return r.DB(ctx).Create(detail).Error
}

func (r *repository) FindInflow(ctx context.Context, id uuid.UUID, lock bool) (*models.Inflow, error) {
	var inflow models.Inflow
	if err := repo.ForUpdate(r.DB(ctx), lock).Where("id = ?", id).First(&inflow).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).
		Where("inflow_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&inflow.Details).Error; err != nil {
		return nil, err
	}
	return &inflow, nil
}

func (r *repository) DeleteInflow(ctx context.Context, id uuid.UUID) error {
	conn := r.DB(ctx)
	if err := conn.Where("inflow_id = ?", id).Delete(&models.InflowDetail{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.Inflow{}).Error
}

// CreateOutflow inserts the outflow together with its details.
func (r *repository) CreateOutflow(ctx context.Context, outflow *models.Outflow) error {
	return r.DB(ctx).Create(outflow).Error
}

func (r *repository) FindOutflow(ctx context.Context, id uuid.UUID, lock bool) (*models.Outflow, error) {
	var outflow models.Outflow
	if err := repo.ForUpdate(r.DB(ctx), lock).Where("id = ?", id).First(&outflow).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).
		Where("outflow_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&outflow.Details).Error; err != nil {
		return nil, err
	}
	return &outflow, nil
}

func (r *repository) DeleteOutflow(ctx context.Context, id uuid.UUID) error {
	conn := r.DB(ctx)
	if err := conn.Where("outflow_id = ?", id).Delete(&models.OutflowDetail{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.Outflow{}).Error
}

// LotsWithConsumption returns the subset of lotIDs referenced by any outflow
// or shrinkage detail.
func (r *repository) LotsWithConsumption(ctx context.Context, lotIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(lotIDs) == 0 {
		return nil, nil
	}
	var consumed []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.OutflowDetail{}).
		Distinct("lot_id").
		Where("lot_id IN ?", lotIDs).
		Pluck("lot_id", &consumed).Error; err != nil {
		return nil, err
	}
	var shrunk []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.ShrinkageDetail{}).
		Distinct("lot_id").
		Where("lot_id IN ?", lotIDs).
		Pluck("lot_id", &shrunk).Error; err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]struct{}{}
	out := []uuid.UUID{}
	for _, id := range append(consumed, shrunk...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
