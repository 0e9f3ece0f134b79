package consume

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
)

// ErrUnrouted is returned by Bind for event types without a handler.
var ErrUnrouted = errors.New("event type not routed")

// Route turns a delivery of one event type into a pending handler call.
type Route interface {
	bind(d Delivery) (func(context.Context) error, error)
}

type typedRoute[T any] struct {
	versions []int
	handle   func(context.Context, Delivery, *T) error
}

// Handle builds a route that decodes payloads into T. Without explicit
// versions only schema version 1 is accepted.
func Handle[T any](handle func(context.Context, Delivery, *T) error, versions ...int) Route {
	if len(versions) == 0 {
		versions = []int{1}
	}
	return typedRoute[T]{versions: versions, handle: handle}
}

func (r typedRoute[T]) bind(d Delivery) (func(context.Context) error, error) {
	if !slices.Contains(r.versions, d.Version) {
		return nil, fmt.Errorf("unsupported schema version %d", d.Version)
	}
	decoded := new(T)
	if err := (outbox.PayloadEnvelope{Data: d.Data}).DecodeData(decoded); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return r.handle(ctx, d, decoded) }, nil
}

// Router maps outbox event types to typed handlers. It is built once at
// startup and only read afterwards.
type Router struct {
	routes map[enums.OutboxEventType]Route
}

func NewRouter() *Router {
	return &Router{routes: make(map[enums.OutboxEventType]Route)}
}

func (r *Router) On(eventType enums.OutboxEventType, route Route) error {
	if !eventType.IsValid() {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	if route == nil {
		return fmt.Errorf("nil route for %s", eventType)
	}
	if _, exists := r.routes[eventType]; exists {
		return fmt.Errorf("event type %s already routed", eventType)
	}
	r.routes[eventType] = route
	return nil
}

func (r *Router) Routes(eventType enums.OutboxEventType) bool {
	_, ok := r.routes[eventType]
	return ok
}

// Bind decodes the payload so malformed events are rejected before any side
// effect; the returned call runs the handler.
func (r *Router) Bind(d Delivery) (func(context.Context) error, error) {
	route, ok := r.routes[d.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnrouted, d.EventType)
	}
	if d.Version == 0 {
		d.Version = 1
	}
	call, err := route.bind(d)
	if err != nil {
		return nil, fmt.Errorf("%s@v%d: %w", d.EventType, d.Version, err)
	}
	return call, nil
}
