package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

// Recorder delivers one movement to the sink and stores the acknowledgement.
// Delivering the same event twice returns the record already stored.
type Recorder struct {
	sink Sink
	repo *Repository
	logg *logger.Logger
}

func NewRecorder(sink Sink, repo *Repository, logg *logger.Logger) (*Recorder, error) {
	if sink == nil {
		return nil, errors.New("audit sink required")
	}
	if repo == nil {
		return nil, errors.New("audit repository required")
	}
	return &Recorder{sink: sink, repo: repo, logg: logg}, nil
}

func (r *Recorder) SinkName() string {
	return r.sink.Name()
}

// Record runs inside the relay's transaction so the audit record and the
// outbox acknowledgement commit together.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, event payloads.MovementRecordedEvent) (*models.AuditRecord, error) {
	existing, err := r.repo.FindByEvent(ctx, tx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load audit record: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	movement := MovementFromEvent(eventID, event)
	txID, err := r.sink.Record(ctx, movement)
	if err != nil {
		return nil, fmt.Errorf("%s sink: %w", r.sink.Name(), err)
	}
	payload, err := movement.payload()
	if err != nil {
		return nil, fmt.Errorf("marshal movement: %w", err)
	}

	record := &models.AuditRecord{
		TransactionID: txID,
		EventID:       eventID,
		Sink:          r.sink.Name(),
		MovementType:  movement.MovementType,
		ProductID:     movement.ProductID,
		LotID:         movement.LotID,
		WarehouseID:   movement.WarehouseID,
		Quantity:      movement.Quantity,
		ActorID:       movement.ActorID,
		Payload:       payload,
		OccurredAt:    movement.OccurredAt,
	}
	inserted, err := r.repo.Insert(ctx, tx, record)
	if err != nil {
		return nil, fmt.Errorf("insert audit record: %w", err)
	}
	if !inserted {
		stored, err := r.repo.FindByEvent(ctx, tx, eventID)
		if err != nil {
			return nil, fmt.Errorf("load audit record: %w", err)
		}
		if stored == nil {
			return nil, fmt.Errorf("transaction id %s already recorded for another event", txID)
		}
		return stored, nil
	}

	if r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"event_id":       eventID.String(),
			"transaction_id": txID,
			"sink":           r.sink.Name(),
		})
		r.logg.Debug(logCtx, "audit record stored")
	}
	return record, nil
}
