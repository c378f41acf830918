package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base holds the connection a domain repository queries through. Embed it
// and rebind with WithTx to run the same repository inside a transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB returns the connection scoped to ctx. A nil ctx returns it unscoped.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// WithTx rebinds b to tx. A nil tx leaves b unchanged.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}

// Exists reports whether model's table has a row with primary key id.
func (b Base) Exists(ctx context.Context, model any, id uuid.UUID) (bool, error) {
	var n int64
	err := b.DB(ctx).Model(model).Where("id = ?", id).Limit(1).Count(&n).Error
	return n > 0, err
}

// ForUpdate adds SELECT ... FOR UPDATE when lock is set. Dialects without
// row locks, like sqlite, drop the clause.
func ForUpdate(q *gorm.DB, lock bool) *gorm.DB {
	if !lock {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IndexByID loads the rows of T whose primary key is in ids and keys them by
// key. Missing ids are simply absent from the result.
func IndexByID[T any](ctx context.Context, b Base, ids []uuid.UUID, key func(T) uuid.UUID) (map[uuid.UUID]T, error) {
	out := make(map[uuid.UUID]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []T
	if err := b.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[key(row)] = row
	}
	return out, nil
}
