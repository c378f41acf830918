package shrinkage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/repo"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

// Repository persists shrinkage reports and their details.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	WarehouseExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Create(ctx context.Context, report *models.ShrinkageReport) error
	FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.ShrinkageReport, error)
	Resolve(ctx context.Context, report *models.ShrinkageReport) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPending(ctx context.Context, query pendingQuery) ([]models.ShrinkageReport, error)
}

type pendingQuery struct {
	warehouseID *uuid.UUID
	cursor      *pagination.Cursor
	limit       int
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

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return repo.IndexByID(ctx, r.Base, ids, func(p models.Product) uuid.UUID { return p.ID })
}

// Create inserts the report together with its details.
func (r *repository) Create(ctx context.Context, report *models.ShrinkageReport) error {
	return r.DB(ctx).Create(report).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.ShrinkageReport, error) {
	var report models.ShrinkageReport
	if err := repo.ForUpdate(r.DB(ctx), lock).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	if err := r.DB(ctx).
		Where("report_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&report.Details).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// Resolve persists the resolution columns and the recomputed total.
func (r *repository) Resolve(ctx context.Context, report *models.ShrinkageReport) error {
	return r.DB(ctx).
		Model(&models.ShrinkageReport{}).
		Where("id = ?", report.ID).
		Updates(map[string]any{
			"status":          report.Status,
			"resolved_by":     report.ResolvedBy,
			"resolved_at":     report.ResolvedAt,
			"resolution_note": report.ResolutionNote,
			"total_value":     report.TotalValue,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.DB(ctx)
	if err := conn.Where("report_id = ?", id).Delete(&models.ShrinkageDetail{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.ShrinkageReport{}).Error
}

// ListPending returns pending reports oldest first.
func (r *repository) ListPending(ctx context.Context, query pendingQuery) ([]models.ShrinkageReport, error) {
	q := r.DB(ctx).
		Model(&models.ShrinkageReport{}).
		Where("status = ?", enums.ShrinkageStatusPending)
	if query.warehouseID != nil {
		q = q.Where("warehouse_id = ?", *query.warehouseID)
	}
	if query.cursor != nil {
		q = q.Where("((created_at > ?) OR (created_at = ? AND id > ?))", query.cursor.At, query.cursor.At, query.cursor.ID)
	}

	var rows []models.ShrinkageReport
	if err := q.Order("created_at ASC").Order("id ASC").Limit(query.limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
