package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
	"gorm.io/gorm"
)

const (
	defaultDispatchBatchSize = 100
	defaultDispatchMinAge    = 30 * time.Minute
)

type PendingOrderDispatchJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository pendingOrderLister
	Outbox     readyEmitter
	BatchSize  int
	MinAge     time.Duration
}

type pendingOrderLister interface {
	ListPendingCustomerOrderIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)
}

type readyEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewPendingOrderDispatchJob queues customer orders that were never sent to
// the logistics center once they are older than MinAge.
func NewPendingOrderDispatchJob(params PendingOrderDispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatchSize
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultDispatchMinAge
	}
	return &pendingOrderDispatchJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repository,
		outbox: params.Outbox,
		batch:  batch,
		minAge: minAge,
		now:    time.Now,
	}, nil
}

type pendingOrderDispatchJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   pendingOrderLister
	outbox readyEmitter
	batch  int
	minAge time.Duration
	now    func() time.Time
}

func (j *pendingOrderDispatchJob) Name() string { return "pending-order-dispatch" }

func (j *pendingOrderDispatchJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	ids, err := j.repo.ListPendingCustomerOrderIDs(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending customer orders: %w", err)
	}

	queued := 0
	for _, id := range ids {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCustomerOrderReady,
				AggregateType: enums.AggregateCustomerOrder,
				AggregateID:   outbox.AggregateIDFromInt(id),
				Data:          payloads.CustomerOrderReadyEvent{OrderID: id},
			})
		})
		if err != nil {
			return fmt.Errorf("queue customer order %d: %w", id, err)
		}
		queued++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"batch_size":    j.batch,
		"orders_found":  len(ids),
		"orders_queued": queued,
	})
	j.logg.Info(logCtx, "pending customer orders queued")
	return nil
}
