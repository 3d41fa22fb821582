package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// maxSettleRounds bounds Settle when handlers keep recording into the
// collector being flushed.
const maxSettleRounds = 16

// ErrUnsettled is returned by Settle when a collector is still not empty
// after maxSettleRounds flushes.
var ErrUnsettled = errors.New("events: collector did not settle")

// Handler reacts to one event. A returned error aborts the flush it runs in.
type Handler func(ctx context.Context, e Event) error

// Journal persists drained batches before they are dispatched.
type Journal interface {
	Append(ctx context.Context, batch []Event) error
}

// Bus dispatches events to handlers subscribed by kind. It holds no pending
// events itself: those live in the Collector of each unit of work.
type Bus struct {
	mu       sync.RWMutex
	handlers [kindCount][]Handler

	journal    Journal
	logger     *log.Logger
	tracer     trace.Tracer
	dispatched metric.Int64Counter
	failures   metric.Int64Counter
}

// Option configures a Bus.
type Option func(*Bus)

// WithJournal appends every flushed batch to j before dispatch.
func WithJournal(j Journal) Option {
	return func(b *Bus) { b.journal = j }
}

// WithLogger sets the logger used for handler failures.
func WithLogger(l *log.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a bus with an empty subscription table.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger: log.Default(),
		tracer: otel.Tracer("libraryflow/events"),
	}
	for _, opt := range opts {
		opt(b)
	}

	meter := otel.Meter("libraryflow/events")
	var err error
	if b.dispatched, err = meter.Int64Counter("events.dispatched",
		metric.WithDescription("Events delivered to every subscribed handler")); err != nil {
		b.dispatched = noop.Int64Counter{}
	}
	if b.failures, err = meter.Int64Counter("events.handler_failures",
		metric.WithDescription("Handler errors that aborted a dispatch")); err != nil {
		b.failures = noop.Int64Counter{}
	}
	return b
}

// Subscribe registers h for every event of kind. Handlers of one kind run in
// registration order. Subscribing to an undeclared kind is a wiring bug and
// panics.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	if !kind.Valid() {
		panic(fmt.Sprintf("events: subscribe to undeclared %s", kind))
	}
	if h == nil {
		panic("events: nil handler for " + kind.String())
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// On subscribes a handler typed on the concrete event struct E.
func On[E Event](b *Bus, h func(context.Context, E) error) {
	var zero E
	kind := zero.Kind()
	b.Subscribe(kind, func(ctx context.Context, e Event) error {
		typed, ok := e.(E)
		if !ok {
			return fmt.Errorf("events: %s delivered as %T", kind, e)
		}
		return h(ctx, typed)
	})
}

// Publish dispatches e immediately, outside of any unit of work.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	ctx, span := b.tracer.Start(ctx, "events.publish",
		trace.WithAttributes(attribute.String("event.kind", e.Kind().String())),
	)
	defer span.End()

	if err := b.dispatch(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Flush drains c and dispatches the drained events in insertion order.
// Events recorded into c while handlers run stay in c for the next Flush.
// The first handler error stops the flush; events not yet dispatched are
// dropped and completed handlers are not undone.
func (b *Bus) Flush(ctx context.Context, c *Collector) error {
	batch := c.Drain()
	if len(batch) == 0 {
		return nil
	}

	ctx, span := b.tracer.Start(ctx, "events.flush",
		trace.WithAttributes(attribute.Int("event.count", len(batch))),
	)
	defer span.End()

	if b.journal != nil {
		if err := b.journal.Append(ctx, batch); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("journal events: %w", err)
		}
	}

	for i, e := range batch {
		if err := b.dispatch(ctx, e); err != nil {
			span.SetAttributes(attribute.Int("event.dropped", len(batch)-i-1))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

// Settle flushes c until it is empty, delivering cascades recorded by
// handlers into the same collector.
func (b *Bus) Settle(ctx context.Context, c *Collector) error {
	for round := 0; c.Len() > 0; round++ {
		if round == maxSettleRounds {
			return fmt.Errorf("%w after %d rounds", ErrUnsettled, round)
		}
		if err := b.Flush(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) handlersFor(kind Kind) []Handler {
	if !kind.Valid() {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[kind][:len(b.handlers[kind]):len(b.handlers[kind])]
}

func (b *Bus) dispatch(ctx context.Context, e Event) error {
	kind := e.Kind()
	attrs := metric.WithAttributes(attribute.String("event.kind", kind.String()))

	for _, h := range b.handlersFor(kind) {
		if err := h(ctx, e); err != nil {
			b.failures.Add(ctx, 1, attrs)
			b.logger.Error("event handler failed", "kind", kind, "aggregate_id", e.AggregateID(), "err", err)
			return fmt.Errorf("handle %s: %w", kind, err)
		}
	}
	b.dispatched.Add(ctx, 1, attrs)
	return nil
}
