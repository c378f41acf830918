package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

// Fallbacks for a zero OutboxConfig.
const (
	defaultRelayedRetention    = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
	defaultParkedAttempts      = 10
)

type relayedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configures pruning of the outbox tables. Parked
// rows (attempts at Config.MaxAttempts) are pruned with relayed ones because
// the relay already copied them to outbox_dlq. DeadLetters is optional.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Events      relayedEventPruner
	DeadLetters deadLetterPruner
	Config      config.OutboxConfig
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	events      relayedEventPruner
	deadLetters deadLetterPruner
	keepRelayed time.Duration
	keepDLQ     time.Duration
	parkedAt    int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Events == nil:
		return nil, errors.New("outbox event pruner required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		keepRelayed: days(params.Config.RetentionDays, defaultRelayedRetention),
		keepDLQ:     days(params.Config.DLQRetentionDays, defaultDeadLetterRetention),
		parkedAt:    params.Config.MaxAttempts,
		now:         time.Now,
	}
	if job.parkedAt <= 0 {
		job.parkedAt = defaultParkedAttempts
	}
	return job, nil
}

func days(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * 24 * time.Hour
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes both tables in one transaction so a failure leaves neither
// half-cleaned.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	relayedCutoff := now.Add(-j.keepRelayed)
	dlqCutoff := now.Add(-j.keepDLQ)

	var relayed, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.events.DeletePublishedBefore(ctx, tx, relayedCutoff, j.parkedAt)
		if err != nil {
			return fmt.Errorf("prune outbox events: %w", err)
		}
		relayed = n
		if j.deadLetters == nil {
			return nil
		}
		n, err = j.deadLetters.DeleteFailedBefore(ctx, tx, dlqCutoff)
		if err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
		deadLetters = n
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"relayed_cutoff":       relayedCutoff,
		"dlq_cutoff":           dlqCutoff,
		"parked_after":         j.parkedAt,
		"events_deleted":       relayed,
		"dead_letters_deleted": deadLetters,
	}), "outbox pruned")
	return nil
}
