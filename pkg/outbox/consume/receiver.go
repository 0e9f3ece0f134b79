package consume

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
)

// Outcome is what happened to one delivery. Only Retry nacks the message.
type Outcome string

const (
	Handled   Outcome = metrics.DeliveryOutcomeHandled
	Duplicate Outcome = metrics.DeliveryOutcomeDuplicate
	Dropped   Outcome = metrics.DeliveryOutcomeDropped
	Retry     Outcome = metrics.DeliveryOutcomeRetry
)

func (o Outcome) Ack() bool {
	return o != Retry
}

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type deliveryMetrics interface {
	IncDelivery(consumer, eventType, outcome string)
	ObserveHandle(consumer, eventType string, seconds float64)
}

type ReceiverParams struct {
	// Name scopes the processed-event ledger and labels metrics.
	Name         string
	Subscription subscription
	Router       *Router
	Ledger       Ledger
	Metrics      deliveryMetrics
	Logger       *logger.Logger
}

// Receiver applies the shared delivery policy:
//   - malformed, unrouted and undecodable events are acked and logged
//   - events already in the ledger are acked without running the handler
//   - a handler error that is not retryable is acked and logged
//   - any other handler error clears the ledger entry and nacks
type Receiver struct {
	name         string
	subscription subscription
	router       *Router
	ledger       Ledger
	metrics      deliveryMetrics
	logg         *logger.Logger
}

func NewReceiver(params ReceiverParams) (*Receiver, error) {
	switch {
	case params.Name == "":
		return nil, errors.New("consumer name is required")
	case params.Subscription == nil:
		return nil, errors.New("subscription is required")
	case params.Router == nil:
		return nil, errors.New("router is required")
	case params.Ledger == nil:
		return nil, errors.New("ledger is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Receiver{
		name:         params.Name,
		subscription: params.Subscription,
		router:       params.Router,
		ledger:       params.Ledger,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run receives until ctx is canceled or the subscription fails.
func (r *Receiver) Run(ctx context.Context) error {
	return r.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if r.Deliver(msgCtx, msg).Ack() {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Deliver runs one message through the policy and reports the outcome
// without acking it.
func (r *Receiver) Deliver(ctx context.Context, msg *gcppubsub.Message) Outcome {
	d, err := Parse(msg)
	ctx = r.logg.WithFields(ctx, d.logFields())
	outcome := r.deliver(ctx, d, err)
	if r.metrics != nil {
		r.metrics.IncDelivery(r.name, string(d.EventType), string(outcome))
	}
	return outcome
}

func (r *Receiver) deliver(ctx context.Context, d Delivery, parseErr error) Outcome {
	if parseErr != nil {
		r.logg.Warn(r.logg.WithField(ctx, "reason", parseErr.Error()), "dropping malformed delivery")
		return Dropped
	}
	if !r.router.Routes(d.EventType) {
		r.logg.Debug(ctx, "event not routed to this consumer")
		return Dropped
	}
	call, err := r.router.Bind(d)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "reason", err.Error()), "dropping undecodable delivery")
		return Dropped
	}

	seen, err := r.ledger.MarkProcessed(ctx, r.name, d.EventID)
	if err != nil {
		r.logg.Error(ctx, "processed ledger unavailable", err)
		return Retry
	}
	if seen {
		r.logg.Info(ctx, "event already processed")
		return Duplicate
	}

	started := time.Now()
	err = call(ctx)
	if r.metrics != nil {
		r.metrics.ObserveHandle(r.name, string(d.EventType), time.Since(started).Seconds())
	}
	if err == nil {
		r.logg.Info(ctx, "event handled")
		return Handled
	}
	if !pkgerrors.IsRetryable(err) {
		r.logg.Warn(r.logg.WithFields(ctx, pkgerrors.LogFields(err)), "event rejected by handler")
		return Dropped
	}
	r.logg.Error(ctx, "event handler failed", err)
	if forgetErr := r.ledger.Forget(ctx, r.name, d.EventID); forgetErr != nil {
		r.logg.Error(ctx, "failed to clear processed marker", forgetErr)
	}
	return Retry
}
