package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	maxRetryDelay         = 5 * time.Minute
	jitterWindow          = 250 * time.Millisecond
)

const (
	outcomeAudited      = "audited"
	outcomePublished    = "published"
	outcomeFailed       = "failed"
	outcomeDeadLettered = "dead_lettered"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	DeadLetterTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type auditRecorder interface {
	SinkName() string
	Record(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, event payloads.MovementRecordedEvent) (*models.AuditRecord, error)
}

type alertPublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type relayMetrics interface {
	IncRelay(outcome string)
}

// ServiceParams wires the relay. PubSub, Alerts and Metrics are optional;
// without Alerts, alert events are written to the log.
type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	PubSub        pinger
	Repository    outboxRepository
	Registry      registryResolver
	Recorder      auditRecorder
	Alerts        alertPublisher
	DLQRepository dlqRepository
	Metrics       relayMetrics
}

// Service drains committed outbox rows: movements go through the audit sink,
// alerts are published to their topic.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pinger
	repo         outboxRepository
	registry     registryResolver
	recorder     auditRecorder
	alerts       alertPublisher
	dlq          dlqRepository
	metrics      relayMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		missing bool
		name    string
	}{
		{params.Config == nil, "config"},
		{params.Logger == nil, "logger"},
		{params.DB == nil, "database client"},
		{params.Repository == nil, "outbox repository"},
		{params.Registry == nil, "event registry"},
		{params.Recorder == nil, "audit recorder"},
		{params.DLQRepository == nil, "dlq repository"},
	}
	var errs error
	for _, dep := range required {
		if dep.missing {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", dep.name))
		}
	}
	if errs != nil {
		return nil, errs
	}

	outboxCfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		recorder:     params.Recorder,
		alerts:       params.Alerts,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		batchSize:    positiveOr(outboxCfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(outboxCfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(outboxCfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type dependencyCheck struct {
	name string
	ping func(context.Context) error
}

// ensureReadiness pings the database and, when configured, Pub/Sub.
func (s *Service) ensureReadiness(ctx context.Context) error {
	checks := []dependencyCheck{{"database", s.db.Ping}}
	if s.pubsub != nil {
		checks = append(checks, dependencyCheck{"pubsub", s.pubsub.Ping})
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			s.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}
	return nil
}

// Run polls until ctx is done. A batch that settled at least one row is
// followed immediately by the next one; an empty or all-failed batch waits
// one poll interval; a batch error backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	wait := time.Duration(0)
	for {
		if err := s.sleep(ctx, wait); err != nil {
			s.logg.Info(ctx, "audit relay stopping")
			return err
		}

		progressed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "audit relay batch error", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		case progressed:
			wait = 0
			continue
		default:
			wait = s.pollInterval
		}
		wait = withJitter(wait)
	}
}

// processBatch claims up to batchSize rows and relays each inside one
// transaction. It reports whether any row was settled, either delivered or
// dead-lettered; rows that only failed do not count.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	progressed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			settled, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			progressed = progressed || settled
		}
		return nil
	})
	return progressed, err
}

// relay delivers one row and records the result on it, reporting whether the
// row left the queue. Only bookkeeping failures are returned; delivery
// failures are retried later or dead-lettered.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (bool, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return true, s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "", nil)
	}

	fields := s.eventFields(event, resolved.Envelope, resolved.Descriptor)
	outcome, err := s.deliver(ctx, tx, event, resolved)

	var nonRetry registry.NonRetryableError
	attempt := event.AttemptCount + 1
	switch {
	case err == nil:
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return false, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.count(outcome)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered")
		return true, nil

	case errors.As(err, &nonRetry):
		return true, s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, resolved.Descriptor.Topic, fields)

	case attempt >= s.maxAttempts:
		fields["attempt_count"] = attempt
		fields["terminal_reason"] = "max_attempts"
		return true, s.handleTerminal(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max delivery attempts reached: %w", err), resolved.Descriptor.Topic, fields)

	default:
		delay := retryDelay(attempt, s.pollInterval, maxRetryDelay)
		fields["attempt_count"] = attempt
		fields["error"] = err.Error()
		fields["retry_in_ms"] = delay.Milliseconds()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox delivery failed")
		if markErr := s.repo.MarkFailedTx(tx, event.ID, err, time.Now().Add(delay)); markErr != nil {
			return false, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		s.count(outcomeFailed)
		return false, nil
	}
}

func (s *Service) deliver(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent) (string, error) {
	switch resolved.Descriptor.Delivery {
	case registry.DeliveryAudit:
		return outcomeAudited, s.recordAudit(ctx, tx, resolved)
	case registry.DeliveryPublish:
		return outcomePublished, s.publishAlert(ctx, event, resolved)
	default:
		return "", registry.NewNonRetryableError(fmt.Errorf("unknown delivery %q for %s", resolved.Descriptor.Delivery, event.EventType))
	}
}

func (s *Service) recordAudit(ctx context.Context, tx *gorm.DB, resolved *registry.ResolvedEvent) error {
	movement, ok := resolved.Payload.(*payloads.MovementRecordedEvent)
	if !ok || movement == nil {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected movement payload %T", resolved.Payload))
	}
	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("invalid envelope event id: %w", err))
	}
	_, err = s.recorder.Record(ctx, tx, eventID, *movement)
	return err
}

func (s *Service) publishAlert(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	if s.alerts == nil {
		fields := s.eventFields(event, resolved.Envelope, resolved.Descriptor)
		fields["payload"] = string(event.Payload)
		s.logg.Info(s.logg.WithFields(ctx, fields), "inventory alert")
		return nil
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	_, err := s.alerts.Publish(publishCtx, resolved.Descriptor.Topic, event.Payload, attrs)
	return err
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, topic string, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{}, registry.EventDescriptor{Topic: topic})
	}
	fields["error_reason"] = reason
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	if dlqErr := s.dlq.DeadLetterTx(tx, event, reason, err); dlqErr != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, dlqErr)
	}
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	s.count(outcomeDeadLettered)
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, desc registry.EventDescriptor) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if desc.Topic != "" {
		fields["topic"] = desc.Topic
	}
	if desc.Delivery == registry.DeliveryAudit {
		fields["sink"] = s.recorder.SinkName()
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) count(outcome string) {
	if s.metrics != nil && outcome != "" {
		s.metrics.IncRelay(outcome)
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// retryDelay doubles base for every attempt after the first, capped at max.
func retryDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	return min(delay, max)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
