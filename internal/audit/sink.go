package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

// Sink mirrors a committed movement to an external audit store and returns
// the store's transaction id.
type Sink interface {
	Name() string
	Record(ctx context.Context, movement Movement) (string, error)
}

// LogSink writes movements to the log and returns MOCKTX ids. It is meant for
// local development.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Name() string { return config.AuditSinkLog }

func (s *LogSink) Record(ctx context.Context, movement Movement) (string, error) {
	txID := "MOCKTX-" + uuid.NewString()
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transaction_id": txID,
			"event_id":       movement.EventID.String(),
			"movement_type":  movement.MovementType.String(),
			"lot_id":         movement.LotID.String(),
			"quantity":       movement.Quantity.String(),
		})
		s.logg.Info(logCtx, "audit movement recorded")
	}
	return txID, nil
}

type messagePublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// PubSubSink publishes each movement to the audit topic. The Pub/Sub message
// id becomes the transaction id.
type PubSubSink struct {
	publisher messagePublisher
	topic     string
}

func NewPubSubSink(publisher messagePublisher, topic string) (*PubSubSink, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("audit topic required")
	}
	return &PubSubSink{publisher: publisher, topic: strings.TrimSpace(topic)}, nil
}

func (s *PubSubSink) Name() string { return config.AuditSinkPubSub }

func (s *PubSubSink) Record(ctx context.Context, movement Movement) (string, error) {
	data, err := json.Marshal(movement)
	if err != nil {
		return "", fmt.Errorf("marshal movement: %w", err)
	}
	attrs := map[string]string{
		"event_id":      movement.EventID.String(),
		"movement_type": movement.MovementType.String(),
		"product_id":    movement.ProductID.String(),
	}
	id, err := s.publisher.Publish(ctx, s.topic, data, attrs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("pubsub returned empty message id")
	}
	return id, nil
}
