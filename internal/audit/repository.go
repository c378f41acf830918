package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

// Filter narrows audit history queries. Zero values match everything.
type Filter struct {
	ProductID    *uuid.UUID
	WarehouseID  *uuid.UUID
	MovementType *enums.MovementType
	From         *time.Time
	To           *time.Time
}

// Repository stores the append-only audit trail.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// Insert appends a record and reports whether a row was written. A record
// colliding on transaction id or event id is skipped without aborting tx.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, record *models.AuditRecord) (bool, error) {
	result := r.conn(ctx, tx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByEvent returns the record stored for an outbox event, or nil.
func (r *Repository) FindByEvent(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) (*models.AuditRecord, error) {
	var record models.AuditRecord
	err := r.conn(ctx, tx).Where("event_id = ?", eventID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByProduct returns up to limit records for a product, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.AuditRecord, error) {
	return r.List(ctx, Filter{ProductID: &productID}, cursor, limit)
}

// List pages through records newest first. The cursor carries the
// occurred_at and id of the last row already returned.
func (r *Repository) List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.AuditRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditRecord{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.MovementType != nil {
		query = query.Where("movement_type = ?", *filter.MovementType)
	}
	if filter.From != nil {
		query = query.Where("occurred_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("occurred_at < ?", filter.To.UTC())
	}
	if cursor != nil {
		query = query.Where("((occurred_at < ?) OR (occurred_at = ? AND id < ?))", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.AuditRecord
	if err := query.Order("occurred_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
