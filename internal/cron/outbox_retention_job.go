package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const (
	fallbackOutboxRetentionDays = 30
	fallbackDLQRetentionDays    = 90
	fallbackRelayMaxAttempts    = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	CountByReason(ctx context.Context, tx *gorm.DB) (map[enums.OutboxDLQErrorReason]int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      outboxPruner
	DeadLetters deadLetterPruner
	// RetentionDays applies to relayed rows, DLQRetentionDays to dead letters.
	RetentionDays    int
	DLQRetentionDays int
	// MaxAttempts marks outbox rows the relay stopped retrying.
	MaxAttempts int
	Clock       func() time.Time
}

// outboxRetentionJob prunes relayed outbox rows and, on a longer horizon,
// their dead letters. Unrelayed rows below MaxAttempts are never touched.
type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxPruner
	deadLetters deadLetterPruner
	keep        time.Duration
	keepDLQ     time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository required")
	}
	days := func(v, fallback int) time.Duration {
		if v <= 0 {
			v = fallback
		}
		return time.Duration(v) * 24 * time.Hour
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = fallbackRelayMaxAttempts
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		deadLetters: params.DeadLetters,
		keep:        days(params.RetentionDays, fallbackOutboxRetentionDays),
		keepDLQ:     days(params.DLQRetentionDays, fallbackDLQRetentionDays),
		maxAttempts: maxAttempts,
		now:         now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var relayed, deadLettered int64
	var remaining map[enums.OutboxDLQErrorReason]int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if relayed, err = j.outbox.DeletePublishedBefore(ctx, tx, now.Add(-j.keep), j.maxAttempts); err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		if deadLettered, err = j.deadLetters.DeleteFailedBefore(ctx, tx, now.Add(-j.keepDLQ)); err != nil {
			return fmt.Errorf("prune dlq: %w", err)
		}
		remaining, err = j.deadLetters.CountByReason(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}

	fields := map[string]any{
		"outbox_rows_deleted": relayed,
		"dlq_rows_deleted":    deadLettered,
	}
	for reason, n := range remaining {
		fields["dlq_remaining_"+string(reason)] = n
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention complete")
	return nil
}
