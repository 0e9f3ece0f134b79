package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const (
	defaultReplayBatchSize   = 50
	defaultReplayGracePeriod = 15 * time.Minute
)

type LogisticsMessageReplayJobParams struct {
	Logger      *logger.Logger
	Processor   messageReplayer
	BatchSize   int
	GracePeriod time.Duration
}

type messageReplayer interface {
	ReplayPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

func NewLogisticsMessageReplayJob(params LogisticsMessageReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("message processor required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReplayBatchSize
	}
	grace := params.GracePeriod
	if grace <= 0 {
		grace = defaultReplayGracePeriod
	}
	return &logisticsMessageReplayJob{
		logg:      params.Logger,
		processor: params.Processor,
		batch:     batch,
		grace:     grace,
		now:       time.Now,
	}, nil
}

type logisticsMessageReplayJob struct {
	logg      *logger.Logger
	processor messageReplayer
	batch     int
	grace     time.Duration
	now       func() time.Time
}

func (j *logisticsMessageReplayJob) Name() string { return "logistics-message-replay" }

// Run retries messages that were stored but never processed, typically
// because their referenced order was not yet known when they arrived.
func (j *logisticsMessageReplayJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	processed, err := j.processor.ReplayPending(ctx, cutoff, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":             cutoff,
		"batch_size":         j.batch,
		"messages_processed": processed,
	})
	if err != nil {
		j.logg.Warn(logCtx, "logistics message replay incomplete")
		return fmt.Errorf("logistics message replay: %w", err)
	}
	j.logg.Info(logCtx, "logistics message replay complete")
	return nil
}
