package movements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
)

// Service records inflows and outflows against the lot ledger.
type Service interface {
	RecordInflow(ctx context.Context, actor inventory.Actor, input InflowInput) (*InflowDTO, error)
	RecordOutflow(ctx context.Context, actor inventory.Actor, input OutflowInput) (*OutflowDTO, error)
	ReverseInflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) error
	ReverseOutflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) error
	GetInflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*InflowDTO, error)
	GetOutflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*OutflowDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type placementBinder interface {
	Place(ctx context.Context, tx *gorm.DB, warehouseID, lotID uuid.UUID) (*models.InventoryPlacement, error)
	Lookup(ctx context.Context, tx *gorm.DB, warehouseID, lotID uuid.UUID) (*models.InventoryPlacement, error)
	DeleteByLots(ctx context.Context, tx *gorm.DB, lotIDs []uuid.UUID) error
}

type movementCounter interface {
	IncMovement(movementType string)
}

// ServiceParams wires the recorder's collaborators. Metrics and Logger are
// optional.
type ServiceParams struct {
	DB         txRunner
	Repo       Repository
	Lots       lots.Repository
	Ledger     *lots.Ledger
	Placements placementBinder
	Outbox     outbox.Emitter
	Metrics    movementCounter
	Logger     *logger.Logger
}

type service struct {
	db         txRunner
	repo       Repository
	lots       lots.Repository
	ledger     *lots.Ledger
	placements placementBinder
	outbox     outbox.Emitter
	metrics    movementCounter
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if params.Lots == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("lot ledger required")
	}
	if params.Placements == nil {
		return nil, fmt.Errorf("placement service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		db:         params.DB,
		repo:       params.Repo,
		lots:       params.Lots,
		ledger:     params.Ledger,
		placements: params.Placements,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// RecordInflow creates one new lot per line, places it in the target
// warehouse and records the inflow with its details.
func (s *service) RecordInflow(ctx context.Context, actor inventory.Actor, input InflowInput) (*InflowDTO, error) {
	if err := actor.RequireWarehouse(input.WarehouseID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	receivedAt := now
	if input.ReceivedAt != nil {
		receivedAt = input.ReceivedAt.UTC()
	}

	var inflow *models.Inflow
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)

		if err := s.requireExists(ctx, repo.WarehouseExists, "warehouse", input.WarehouseID); err != nil {
			return err
		}
		if err := s.requireExists(ctx, repo.SupplierExists, "supplier", input.SupplierID); err != nil {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
		products, err := repo.FindProducts(ctx, productIDs)
		if err != nil {
			return inventory.Dependency(err, "load products")
		}
		for _, line := range input.Lines {
			if _, ok := products[line.ProductID]; !ok {
				return inventory.NotFound("product", line.ProductID)
			}
		}

		inflow = &models.Inflow{
			WarehouseID: input.WarehouseID,
			SupplierID:  input.SupplierID,
			ReceivedBy:  actor.UserID,
			ReceivedAt:  receivedAt,
			Reference:   input.Reference,
			Notes:       input.Notes,
		}
		if err := repo.CreateInflow(ctx, inflow); err != nil {
			return inventory.Dependency(err, "insert inflow")
		}

		for _, line := range input.Lines {
			product := products[line.ProductID]
			count := decimal.NewFromInt(int64(line.LotCount))
			lot := &models.Lot{
				ProductID:     product.ID,
				Code:          strings.TrimSpace(line.Code),
				Quantity:      count.Mul(decimal.NewFromInt(int64(product.UnitsPerLot))),
				ExpiresAt:     line.ExpiresAt,
				PurchasePrice: product.LotValue(count),
			}
			lots.ReconcileActivity(lot, now)
			if err := lotRepo.Create(ctx, lot); err != nil {
				return inventory.Dependency(err, "insert lot")
			}
			if _, err := s.placements.Place(ctx, tx, input.WarehouseID, lot.ID); err != nil {
				return err
			}

			detail := models.InflowDetail{
				InflowID:  inflow.ID,
				ProductID: product.ID,
				LotID:     lot.ID,
				LotCount:  line.LotCount,
				Quantity:  lot.Quantity,
				TotalCost: lot.PurchasePrice,
			}
			if err := repo.CreateInflowDetail(ctx, &detail); err != nil {
				return inventory.Dependency(err, "insert inflow detail")
			}
			inflow.Details = append(inflow.Details, detail)

			value := detail.TotalCost
			event := inventory.MovementEvent(actor, inventory.Movement{
				Type:        enums.MovementInflow,
				Lot:         lot,
				WarehouseID: input.WarehouseID,
				Quantity:    detail.Quantity,
				ReferenceID: inflow.ID,
				DetailID:    detail.ID,
				Value:       &value,
				OccurredAt:  receivedAt,
			})
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return inventory.Dependency(err, "emit inflow movement")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countMovement(enums.MovementInflow)
	s.logInfo(ctx, actor, "inflow recorded", map[string]any{
		"inflow_id": inflow.ID.String(),
		"lines":     len(inflow.Details),
	})
	return inflowDTO(inflow), nil
}

// RecordOutflow validates every line against placement and stock before any
// lot is touched. Lines naming the same lot are checked against their sum.
func (s *service) RecordOutflow(ctx context.Context, actor inventory.Actor, input OutflowInput) (*OutflowDTO, error) {
	if err := actor.RequireWarehouse(input.WarehouseID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	issuedAt := now
	if input.IssuedAt != nil {
		issuedAt = input.IssuedAt.UTC()
	}

	var outflow *models.Outflow
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)

		if err := s.requireExists(ctx, repo.WarehouseExists, "warehouse", input.WarehouseID); err != nil {
			return err
		}
		if input.CustomerID != nil {
			if err := s.requireExists(ctx, repo.CustomerExists, "customer", *input.CustomerID); err != nil {
				return err
			}
		}

		requested := map[uuid.UUID]decimal.Decimal{}
		lotIDs := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			requested[line.LotID] = requested[line.LotID].Add(line.Quantity)
			lotIDs = append(lotIDs, line.LotID)
		}
		lotIDs = lots.SortedUnique(lotIDs)

		locked, err := lotRepo.LockByIDs(ctx, lotIDs)
		if err != nil {
			return inventory.Dependency(err, "lock lots")
		}
		for _, id := range lotIDs {
			lot, ok := locked[id]
			if !ok {
				return inventory.NotFound("lot", id)
			}
			if _, err := s.placements.Lookup(ctx, tx, input.WarehouseID, id); err != nil {
				return err
			}
			if err := lots.EnsureAvailable(lot, requested[id]); err != nil {
				return err
			}
		}

		outflow = &models.Outflow{
			WarehouseID: input.WarehouseID,
			CustomerID:  input.CustomerID,
			IssuedBy:    actor.UserID,
			IssuedAt:    issuedAt,
			Reference:   input.Reference,
			Notes:       input.Notes,
		}
		for _, line := range input.Lines {
			outflow.Details = append(outflow.Details, models.OutflowDetail{
				LotID:     line.LotID,
				ProductID: locked[line.LotID].ProductID,
				Quantity:  line.Quantity,
			})
		}
		if err := repo.CreateOutflow(ctx, outflow); err != nil {
			return inventory.Dependency(err, "insert outflow")
		}

		for _, id := range lotIDs {
			if _, err := s.ledger.Adjust(ctx, lotRepo, locked[id], requested[id].Neg()); err != nil {
				return err
			}
		}

		for _, detail := range outflow.Details {
			event := inventory.MovementEvent(actor, inventory.Movement{
				Type:        enums.MovementOutflow,
				Lot:         locked[detail.LotID],
				WarehouseID: input.WarehouseID,
				Quantity:    detail.Quantity,
				ReferenceID: outflow.ID,
				DetailID:    detail.ID,
				OccurredAt:  issuedAt,
			})
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return inventory.Dependency(err, "emit outflow movement")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countMovement(enums.MovementOutflow)
	s.logInfo(ctx, actor, "outflow recorded", map[string]any{
		"outflow_id": outflow.ID.String(),
		"lines":      len(outflow.Details),
	})
	return outflowDTO(outflow), nil
}

// ReverseInflow deletes the inflow, its placements and its lots. It is refused
// while any of those lots carries an outflow or shrinkage detail.
func (s *service) ReverseInflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inflow, err := repo.FindInflow(ctx, id, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return inventory.NotFound("inflow", id)
			}
			return inventory.Dependency(err, "load inflow")
		}
		if err := actor.RequireWarehouse(inflow.WarehouseID); err != nil {
			return err
		}

		lotIDs := make([]uuid.UUID, 0, len(inflow.Details))
		for _, detail := range inflow.Details {
			lotIDs = append(lotIDs, detail.LotID)
		}
		lotIDs = lots.SortedUnique(lotIDs)

		if _, err := s.lots.WithTx(tx).LockByIDs(ctx, lotIDs); err != nil {
			return inventory.Dependency(err, "lock lots")
		}
		consumed, err := repo.LotsWithConsumption(ctx, lotIDs)
		if err != nil {
			return inventory.Dependency(err, "check lot consumption")
		}
		if len(consumed) > 0 {
			ids := make([]string, 0, len(consumed))
			for _, lotID := range consumed {
				ids = append(ids, lotID.String())
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "inflow lots have recorded outflows or shrinkage").
				WithDetails(map[string]any{"lot_ids": ids})
		}

		if err := repo.DeleteInflow(ctx, inflow.ID); err != nil {
			return inventory.Dependency(err, "delete inflow")
		}
		if err := s.placements.DeleteByLots(ctx, tx, lotIDs); err != nil {
			return inventory.Dependency(err, "delete placements")
		}
		if err := s.lots.WithTx(tx).Delete(ctx, lotIDs); err != nil {
			return inventory.Dependency(err, "delete lots")
		}
		s.logInfo(ctx, actor, "inflow reversed", map[string]any{
			"inflow_id": inflow.ID.String(),
			"lots":      len(lotIDs),
		})
		return nil
	})
}

// ReverseOutflow restores to each lot exactly what the outflow deducted and
// deletes the outflow.
func (s *service) ReverseOutflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)
		outflow, err := repo.FindOutflow(ctx, id, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return inventory.NotFound("outflow", id)
			}
			return inventory.Dependency(err, "load outflow")
		}
		if err := actor.RequireWarehouse(outflow.WarehouseID); err != nil {
			return err
		}

		restore := map[uuid.UUID]decimal.Decimal{}
		lotIDs := make([]uuid.UUID, 0, len(outflow.Details))
		for _, detail := range outflow.Details {
			restore[detail.LotID] = restore[detail.LotID].Add(detail.Quantity)
			lotIDs = append(lotIDs, detail.LotID)
		}
		lotIDs = lots.SortedUnique(lotIDs)

		locked, err := lotRepo.LockByIDs(ctx, lotIDs)
		if err != nil {
			return inventory.Dependency(err, "lock lots")
		}
		for _, lotID := range lotIDs {
			lot, ok := locked[lotID]
			if !ok {
				return inventory.NotFound("lot", lotID)
			}
			if _, err := s.ledger.Adjust(ctx, lotRepo, lot, restore[lotID]); err != nil {
				return err
			}
		}

		if err := repo.DeleteOutflow(ctx, outflow.ID); err != nil {
			return inventory.Dependency(err, "delete outflow")
		}
		s.logInfo(ctx, actor, "outflow reversed", map[string]any{
			"outflow_id": outflow.ID.String(),
			"lots":       len(lotIDs),
		})
		return nil
	})
}

func (s *service) GetInflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*InflowDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	inflow, err := s.repo.FindInflow(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotFound("inflow", id)
		}
		return nil, inventory.Dependency(err, "load inflow")
	}
	if !actor.CanAccess(inflow.WarehouseID) {
		return nil, inventory.NotFound("inflow", id)
	}
	return inflowDTO(inflow), nil
}

func (s *service) GetOutflow(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*OutflowDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	outflow, err := s.repo.FindOutflow(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotFound("outflow", id)
		}
		return nil, inventory.Dependency(err, "load outflow")
	}
	if !actor.CanAccess(outflow.WarehouseID) {
		return nil, inventory.NotFound("outflow", id)
	}
	return outflowDTO(outflow), nil
}

func (s *service) requireExists(ctx context.Context, exists func(context.Context, uuid.UUID) (bool, error), entity string, id uuid.UUID) error {
	ok, err := exists(ctx, id)
	if err != nil {
		return inventory.Dependency(err, "load "+entity)
	}
	if !ok {
		return inventory.NotFound(entity, id)
	}
	return nil
}

func (s *service) countMovement(movementType enums.MovementType) {
	if s.metrics != nil {
		s.metrics.IncMovement(movementType.String())
	}
}

func (s *service) logInfo(ctx context.Context, actor inventory.Actor, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithUserID(ctx, actor.UserID.String())
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}
