package audit

import (
	"errors"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type movementsTable interface {
	tableInserter
	MovementsTable() string
}

// SinkDeps carries the clients a configured sink may need. Only the client
// matching the configured kind has to be set.
type SinkDeps struct {
	PubSub   messagePublisher
	Topic    string
	BigQuery movementsTable
	Logger   *logger.Logger
}

// NewSink builds the sink selected by cfg.
func NewSink(cfg config.AuditConfig, deps SinkDeps) (Sink, error) {
	switch cfg.Kind() {
	case config.AuditSinkPubSub:
		if deps.PubSub == nil {
			return nil, errors.New("pubsub sink requires a pubsub client")
		}
		return NewPubSubSink(deps.PubSub, deps.Topic)
	case config.AuditSinkBigQuery:
		if deps.BigQuery == nil {
			return nil, errors.New("bigquery sink requires a bigquery client")
		}
		return NewBigQuerySink(deps.BigQuery, deps.BigQuery.MovementsTable(), RetryPolicy{})
	default:
		return NewLogSink(deps.Logger), nil
	}
}
