package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

// Service answers movement history queries.
type Service interface {
	History(ctx context.Context, actor inventory.Actor, filter Filter, params pagination.Params) (*HistoryPage, error)
	HistoryByProduct(ctx context.Context, actor inventory.Actor, productID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type historyLister interface {
	List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.AuditRecord, error)
}

type RecordDTO struct {
	ID            uuid.UUID          `json:"id"`
	TransactionID string             `json:"transaction_id"`
	Sink          string             `json:"sink"`
	MovementType  enums.MovementType `json:"movement_type"`
	ProductID     uuid.UUID          `json:"product_id"`
	LotID         uuid.UUID          `json:"lot_id"`
	WarehouseID   uuid.UUID          `json:"warehouse_id"`
	Quantity      decimal.Decimal    `json:"quantity"`
	ActorID       uuid.UUID          `json:"actor_id"`
	Payload       json.RawMessage    `json:"payload"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

type HistoryPage struct {
	Items  []RecordDTO `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}

type service struct {
	repo historyLister
}

func NewService(repo historyLister) (Service, error) {
	if repo == nil {
		return nil, errors.New("audit repository required")
	}
	return &service{repo: repo}, nil
}

// History pages through the audit trail newest first. Actors bound to a
// warehouse only see that warehouse's movements.
func (s *service) History(ctx context.Context, actor inventory.Actor, filter Filter, params pagination.Params) (*HistoryPage, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if filter.WarehouseID != nil && !actor.CanAccess(*filter.WarehouseID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "warehouse outside of actor scope")
	}
	if filter.WarehouseID == nil && actor.WarehouseID != nil {
		scoped := *actor.WarehouseID
		filter.WarehouseID = &scoped
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}

	cursor, err := params.After()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, filter, cursor, params.FetchSize())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit records")
	}
	rows, next := pagination.Page(params, rows, func(r models.AuditRecord) pagination.Cursor {
		return pagination.Cursor{At: r.OccurredAt, ID: r.ID}
	})

	items := make([]RecordDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, RecordDTO{
			ID:            row.ID,
			TransactionID: row.TransactionID,
			Sink:          row.Sink,
			MovementType:  row.MovementType,
			ProductID:     row.ProductID,
			LotID:         row.LotID,
			WarehouseID:   row.WarehouseID,
			Quantity:      row.Quantity,
			ActorID:       row.ActorID,
			Payload:       row.Payload,
			OccurredAt:    row.OccurredAt,
		})
	}
	return &HistoryPage{Items: items, Cursor: next}, nil
}

func (s *service) HistoryByProduct(ctx context.Context, actor inventory.Actor, productID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.History(ctx, actor, Filter{ProductID: &productID}, params)
}
