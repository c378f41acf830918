package shrinkage

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/warehouse-backend/pkg/pagination"
)

// Service drives shrinkage reports through pending → approved | rejected.
type Service interface {
	Submit(ctx context.Context, actor inventory.Actor, input SubmitInput) (*ReportDTO, error)
	Approve(ctx context.Context, actor inventory.Actor, id uuid.UUID, note *string) (*ReportDTO, error)
	Reject(ctx context.Context, actor inventory.Actor, id uuid.UUID, reason *string) (*ReportDTO, error)
	Reverse(ctx context.Context, actor inventory.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*ReportDTO, error)
	ListPending(ctx context.Context, actor inventory.Actor, params pagination.Params) (*PendingList, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type placementLookup interface {
	Lookup(ctx context.Context, tx *gorm.DB, warehouseID, lotID uuid.UUID) (*models.InventoryPlacement, error)
}

type movementCounter interface {
	IncMovement(movementType string)
}

// ServiceParams wires the state machine. Metrics and Logger are optional.
type ServiceParams struct {
	DB         txRunner
	Repo       Repository
	Lots       lots.Repository
	Ledger     *lots.Ledger
	Placements placementLookup
	Outbox     outbox.Emitter
	Metrics    movementCounter
	Logger     *logger.Logger
}

type service struct {
	db         txRunner
	repo       Repository
	lots       lots.Repository
	ledger     *lots.Ledger
	placements placementLookup
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
		return nil, fmt.Errorf("shrinkage repository required")
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

// Submit records a report. Workers open it as pending; supervisors and admins
// approve it on creation, which deducts stock immediately and requires every
// lot to cover its total requested loss.
func (s *service) Submit(ctx context.Context, actor inventory.Actor, input SubmitInput) (*ReportDTO, error) {
	if err := actor.RequireWarehouse(input.WarehouseID); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	selfApproved := actor.Role.CanResolveShrinkage()
	now := s.now()

	var report *models.ShrinkageReport
	var locked map[uuid.UUID]*models.Lot
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)

		exists, err := repo.WarehouseExists(ctx, input.WarehouseID)
		if err != nil {
			return inventory.Dependency(err, "load warehouse")
		}
		if !exists {
			return inventory.NotFound("warehouse", input.WarehouseID)
		}

		requested := map[uuid.UUID]decimal.Decimal{}
		lotIDs := make([]uuid.UUID, 0, len(input.Lines))
		productIDs := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			requested[line.LotID] = requested[line.LotID].Add(line.QuantityLost)
			lotIDs = append(lotIDs, line.LotID)
			productIDs = append(productIDs, line.ProductID)
		}
		lotIDs = lots.SortedUnique(lotIDs)

		locked, err = lotRepo.LockByIDs(ctx, lotIDs)
		if err != nil {
			return inventory.Dependency(err, "lock lots")
		}
		products, err := repo.FindProducts(ctx, productIDs)
		if err != nil {
			return inventory.Dependency(err, "load products")
		}

		for _, line := range input.Lines {
			lot, ok := locked[line.LotID]
			if !ok {
				return inventory.NotFound("lot", line.LotID)
			}
			if _, ok := products[line.ProductID]; !ok {
				return inventory.NotFound("product", line.ProductID)
			}
			if lot.ProductID != line.ProductID {
				return inventory.Mismatch(lot.ID, lot.ProductID, line.ProductID)
			}
			if _, err := s.placements.Lookup(ctx, tx, input.WarehouseID, lot.ID); err != nil {
				return err
			}
		}

		if selfApproved {
			for _, id := range lotIDs {
				if err := lots.EnsureAvailable(locked[id], requested[id]); err != nil {
					return err
				}
			}
		}

		report = &models.ShrinkageReport{
			WarehouseID: input.WarehouseID,
			ReportedBy:  actor.UserID,
			Status:      enums.ShrinkageStatusPending,
			Notes:       input.Notes,
		}
		if selfApproved {
			resolvedBy := actor.UserID
			report.Status = enums.ShrinkageStatusApproved
			report.ResolvedBy = &resolvedBy
			report.ResolvedAt = &now
		}

		// Pending reports snapshot each lot's quantity at submission; approved
		// ones record the quantity each line actually deducted from.
		running := make(map[uuid.UUID]decimal.Decimal, len(locked))
		for id, lot := range locked {
			running[id] = lot.Quantity
		}
		for _, line := range input.Lines {
			before := running[line.LotID]
			if line.QuantityLost.GreaterThan(before) {
				return inventory.ExcessQuantity(line.LotID, line.QuantityLost, before)
			}
			if selfApproved {
				running[line.LotID] = before.Sub(line.QuantityLost)
			}
			report.Details = append(report.Details, models.ShrinkageDetail{
				LotID:          line.LotID,
				ProductID:      line.ProductID,
				Reason:         line.Reason,
				QuantityLost:   line.QuantityLost,
				QuantityBefore: before,
				Value:          products[line.ProductID].LotValue(line.QuantityLost),
				Notes:          line.Notes,
			})
		}
		report.TotalValue = RecomputeTotal(report.Details)

		if err := repo.Create(ctx, report); err != nil {
			return inventory.Dependency(err, "insert shrinkage report")
		}

		for _, detail := range report.Details {
			if selfApproved {
				if _, err := s.ledger.Adjust(ctx, lotRepo, locked[detail.LotID], detail.QuantityLost.Neg()); err != nil {
					return err
				}
			}
			if err := s.emitMovement(ctx, tx, actor, enums.MovementShrinkage, report, detail, locked[detail.LotID], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countMovement(enums.MovementShrinkage)
	s.logInfo(ctx, actor, "shrinkage report submitted", map[string]any{
		"report_id": report.ID.String(),
		"status":    report.Status.String(),
		"lines":     len(report.Details),
	})
	return reportDTO(report), nil
}

// Approve moves a pending report to approved and deducts every detail from
// its lot. Deductions larger than the remaining stock clamp at zero.
func (s *service) Approve(ctx context.Context, actor inventory.Actor, id uuid.UUID, note *string) (*ReportDTO, error) {
	if err := requireResolver(actor); err != nil {
		return nil, err
	}

	var report *models.ShrinkageReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)

		var err error
		report, err = s.loadForTransition(ctx, repo, actor, id, enums.ShrinkageStatusApproved)
		if err != nil {
			return err
		}

		lotIDs := make([]uuid.UUID, 0, len(report.Details))
		for _, detail := range report.Details {
			lotIDs = append(lotIDs, detail.LotID)
		}
		locked, err := lotRepo.LockByIDs(ctx, lots.SortedUnique(lotIDs))
		if err != nil {
			return inventory.Dependency(err, "lock lots")
		}

		now := s.now()
		for _, detail := range report.Details {
			lot, ok := locked[detail.LotID]
			if !ok {
				return inventory.NotFound("lot", detail.LotID)
			}
			if _, err := s.ledger.Adjust(ctx, lotRepo, lot, detail.QuantityLost.Neg()); err != nil {
				return err
			}
		}

		resolvedBy := actor.UserID
		report.Status = enums.ShrinkageStatusApproved
		report.ResolvedBy = &resolvedBy
		report.ResolvedAt = &now
		report.ResolutionNote = note
		report.TotalValue = RecomputeTotal(report.Details)
		if err := repo.Resolve(ctx, report); err != nil {
			return inventory.Dependency(err, "approve shrinkage report")
		}

		for _, detail := range report.Details {
			if err := s.emitMovement(ctx, tx, actor, enums.MovementShrinkageApproval, report, detail, locked[detail.LotID], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.countMovement(enums.MovementShrinkageApproval)
	s.logInfo(ctx, actor, "shrinkage report approved", map[string]any{"report_id": report.ID.String()})
	return reportDTO(report), nil
}

// Reject closes a pending report without touching stock.
func (s *service) Reject(ctx context.Context, actor inventory.Actor, id uuid.UUID, reason *string) (*ReportDTO, error) {
	if err := requireResolver(actor); err != nil {
		return nil, err
	}

	var report *models.ShrinkageReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		report, err = s.loadForTransition(ctx, repo, actor, id, enums.ShrinkageStatusRejected)
		if err != nil {
			return err
		}

		now := s.now()
		resolvedBy := actor.UserID
		report.Status = enums.ShrinkageStatusRejected
		report.ResolvedBy = &resolvedBy
		report.ResolvedAt = &now
		report.ResolutionNote = reason
		if err := repo.Resolve(ctx, report); err != nil {
			return inventory.Dependency(err, "reject shrinkage report")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventShrinkageRejected,
			AggregateType: enums.AggregateShrinkageReport,
			AggregateID:   report.ID,
			Actor:         actor.Ref(),
			OccurredAt:    now,
			Data: payloads.ShrinkageRejectedEvent{
				ReportID:    report.ID,
				WarehouseID: report.WarehouseID,
				RejectedBy:  actor.UserID,
				Reason:      derefString(reason),
				RejectedAt:  now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return inventory.Dependency(err, "emit shrinkage rejection")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, actor, "shrinkage report rejected", map[string]any{"report_id": report.ID.String()})
	return reportDTO(report), nil
}

// Reverse deletes a report. Stock is restored only when the report was
// approved, since only approval deducted it.
func (s *service) Reverse(ctx context.Context, actor inventory.Actor, id uuid.UUID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lots.WithTx(tx)

		report, err := repo.FindByID(ctx, id, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return inventory.NotFound("shrinkage report", id)
			}
			return inventory.Dependency(err, "load shrinkage report")
		}
		if err := actor.RequireWarehouse(report.WarehouseID); err != nil {
			return err
		}

		if report.Status == enums.ShrinkageStatusApproved {
			lotIDs := make([]uuid.UUID, 0, len(report.Details))
			for _, detail := range report.Details {
				lotIDs = append(lotIDs, detail.LotID)
			}
			locked, err := lotRepo.LockByIDs(ctx, lots.SortedUnique(lotIDs))
			if err != nil {
				return inventory.Dependency(err, "lock lots")
			}
			for _, detail := range report.Details {
				lot, ok := locked[detail.LotID]
				if !ok {
					return inventory.NotFound("lot", detail.LotID)
				}
				if _, err := s.ledger.Adjust(ctx, lotRepo, lot, detail.QuantityLost); err != nil {
					return err
				}
			}
		}

		if err := repo.Delete(ctx, report.ID); err != nil {
			return inventory.Dependency(err, "delete shrinkage report")
		}
		s.logInfo(ctx, actor, "shrinkage report reversed", map[string]any{
			"report_id": report.ID.String(),
			"status":    report.Status.String(),
		})
		return nil
	})
}

func (s *service) Get(ctx context.Context, actor inventory.Actor, id uuid.UUID) (*ReportDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	report, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotFound("shrinkage report", id)
		}
		return nil, inventory.Dependency(err, "load shrinkage report")
	}
	if !actor.CanAccess(report.WarehouseID) {
		return nil, inventory.NotFound("shrinkage report", id)
	}
	return reportDTO(report), nil
}

// ListPending pages through pending reports in the actor's scope, oldest
// first.
func (s *service) ListPending(ctx context.Context, actor inventory.Actor, params pagination.Params) (*PendingList, error) {
	if err := requireResolver(actor); err != nil {
		return nil, err
	}

	cursor, err := params.After()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPending(ctx, pendingQuery{
		warehouseID: actor.WarehouseID,
		cursor:      cursor,
		limit:       params.FetchSize(),
	})
	if err != nil {
		return nil, inventory.Dependency(err, "list pending shrinkage reports")
	}
	rows, nextCursor := pagination.Page(params, rows, func(r models.ShrinkageReport) pagination.Cursor {
		return pagination.Cursor{At: r.CreatedAt, ID: r.ID}
	})

	items := make([]ReportDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *reportDTO(&rows[i]))
	}
	return &PendingList{Items: items, Cursor: nextCursor}, nil
}

// RecomputeTotal sums the detail values of a report.
func RecomputeTotal(details []models.ShrinkageDetail) decimal.Decimal {
	total := decimal.Zero
	for _, detail := range details {
		total = total.Add(detail.Value)
	}
	return total
}

func (s *service) loadForTransition(ctx context.Context, repo Repository, actor inventory.Actor, id uuid.UUID, target enums.ShrinkageStatus) (*models.ShrinkageReport, error) {
	report, err := repo.FindByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.NotFound("shrinkage report", id)
		}
		return nil, inventory.Dependency(err, "load shrinkage report")
	}
	if err := actor.RequireWarehouse(report.WarehouseID); err != nil {
		return nil, err
	}
	if !report.Status.CanTransitionTo(target) {
		return nil, inventory.InvalidStateTransition(report.Status, target)
	}
	return report, nil
}

func (s *service) emitMovement(ctx context.Context, tx *gorm.DB, actor inventory.Actor, movementType enums.MovementType, report *models.ShrinkageReport, detail models.ShrinkageDetail, lot *models.Lot, at time.Time) error {
	value := detail.Value
	event := inventory.MovementEvent(actor, inventory.Movement{
		Type:        movementType,
		Lot:         lot,
		WarehouseID: report.WarehouseID,
		Quantity:    detail.QuantityLost,
		ReferenceID: report.ID,
		DetailID:    detail.ID,
		Value:       &value,
		Reason:      string(detail.Reason),
		OccurredAt:  at,
	})
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return inventory.Dependency(err, "emit shrinkage movement")
	}
	return nil
}

func requireResolver(actor inventory.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if !actor.Role.CanResolveShrinkage() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "supervisor role required")
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
	logCtx = s.logg.WithActorRole(logCtx, actor.Role.String())
	s.logg.Info(s.logg.WithFields(logCtx, fields), msg)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
