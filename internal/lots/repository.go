package lots

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
)

// ExpiringLot is an active lot with its warehouse, ordered by expiry.
type ExpiringLot struct {
	LotID       uuid.UUID
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Code        string
	Quantity    decimal.Decimal
	ExpiresAt   time.Time
}

// LowStock is a product whose on-hand quantity in a warehouse is under its minimum.
type LowStock struct {
	WarehouseID uuid.UUID
	ProductID   uuid.UUID
	OnHand      decimal.Decimal
	Minimum     decimal.Decimal
}

// Repository persists lots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Lot, error)
	LockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Lot, error)
	Create(ctx context.Context, lot *models.Lot) error
	Save(ctx context.Context, lot *models.Lot) error
	Delete(ctx context.Context, ids []uuid.UUID) error
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]ExpiringLot, error)
	ListLowStock(ctx context.Context) ([]LowStock, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a lot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	var lot models.Lot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

// LockByIDs loads and row-locks the lots in ascending id order so concurrent
// movements touching overlapping lots acquire locks in the same order. Missing
// ids are absent from the result.
func (r *repository) LockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Lot, error) {
	unique := SortedUnique(ids)
	result := make(map[uuid.UUID]*models.Lot, len(unique))
	if len(unique) == 0 {
		return result, nil
	}
	var rows []models.Lot
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", unique).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ID] = &rows[i]
	}
	return result, nil
}

func (r *repository) Create(ctx context.Context, lot *models.Lot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *repository) Save(ctx context.Context, lot *models.Lot) error {
	return r.db.WithContext(ctx).
		Model(&models.Lot{}).
		Where("id = ?", lot.ID).
		Updates(map[string]any{
			"quantity":       lot.Quantity,
			"is_active":      lot.IsActive,
			"inactivated_at": lot.InactivatedAt,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Lot{}).Error
}

func (r *repository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Lot{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}

func (r *repository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]ExpiringLot, error) {
	var rows []ExpiringLot
	err := r.db.WithContext(ctx).
		Table("lots AS l").
		Select("l.id AS lot_id, l.product_id, p.warehouse_id, l.code, l.quantity, l.expires_at").
		Joins("JOIN inventory_placements AS p ON p.lot_id = l.id").
		Where("l.is_active = ?", true).
		Where("l.expires_at IS NOT NULL AND l.expires_at <= ?", cutoff).
		Order("l.expires_at ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) ListLowStock(ctx context.Context) ([]LowStock, error) {
	var rows []LowStock
	err := r.db.WithContext(ctx).
		Table("minimum_stock_levels AS m").
		Select("m.warehouse_id, m.product_id, COALESCE(SUM(l.quantity), 0) AS on_hand, m.quantity AS minimum").
		Joins("LEFT JOIN inventory_placements AS p ON p.warehouse_id = m.warehouse_id").
		Joins("LEFT JOIN lots AS l ON l.id = p.lot_id AND l.product_id = m.product_id AND l.is_active = ?", true).
		Group("m.warehouse_id, m.product_id, m.quantity").
		Having("COALESCE(SUM(l.quantity), 0) < m.quantity").
		Order("m.warehouse_id, m.product_id").
		Scan(&rows).Error
	return rows, err
}

// SortedUnique drops nil and duplicate ids and sorts the rest.
func SortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// IsNotFound reports whether err is gorm's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
