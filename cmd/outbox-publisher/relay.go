package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	idleCeiling         = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               database
	PubSub           topicSource
	Repository       outboxStore
	Registry         eventResolver
	DLQRepository    deadLetterStore
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxRelayMetrics
	Clock            func() time.Time
}

// Relay moves committed outbox rows onto their Pub/Sub topics. Rows are
// claimed inside one transaction per batch, so a crash before commit leaves
// them for the next poll.
type Relay struct {
	logg        *logger.Logger
	db          database
	pubsub      topicSource
	store       outboxStore
	resolver    eventResolver
	deadLetters deadLetterStore
	publisherOf publisherFactory
	metrics     *metrics.OutboxRelayMetrics
	now         func() time.Time

	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Repository,
		resolver:    params.Registry,
		deadLetters: params.DLQRepository,
		publisherOf: params.PublisherFactory,
		metrics:     params.Metrics,
		now:         params.Clock,
		batchSize:   positiveOr(params.Config.Outbox.BatchSize, fallbackBatchSize),
		maxAttempts: positiveOr(params.Config.Outbox.MaxAttempts, fallbackMaxAttempts),
		poll:        time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.publisherOf == nil {
		r.publisherOf = gcpPublisherFactory(params.PubSub)
	}
	return r, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// another poll; failed polls back off up to idleCeiling.
func (r *Relay) Run(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", r.db.Ping},
		{"pubsub", r.pubsub.Ping},
	}
	for _, check := range checks {
		if err := check.ping(ctx); err != nil {
			r.logg.Error(ctx, check.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", check.name, err)
		}
	}

	delay := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		claimed, err := r.relayBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			delay = min(delay*2, idleCeiling)
		case claimed > 0:
			delay = r.poll
			continue
		default:
			delay = r.poll
		}

		if err := pause(ctx, delay+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		r.metrics.ObserveBatch(claimed)

		for _, event := range events {
			result, err := r.relayOne(ctx, tx, event)
			if err != nil {
				return err
			}
			r.metrics.IncEvent(string(event.EventType), result)
		}
		return nil
	})
	return claimed, err
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
