package event

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/invoiceledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus stopped")

// BusConfig sizes the asynchronous dispatcher
type BusConfig struct {
	// Workers is the number of dispatch goroutines. Zero dispatches inline on Publish.
	Workers int
	// QueueSize is the buffer of each worker queue
	QueueSize int
}

// DefaultBusConfig returns the dispatcher defaults
func DefaultBusConfig() BusConfig {
	return BusConfig{Workers: 4, QueueSize: 256}
}

// BusHandlerName labels deliveries the bus itself reports
const BusHandlerName = "bus"

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithBusObserver reports events dropped on a full queue
func WithBusObserver(o DeliveryObserver) BusOption {
	return func(b *InMemoryEventBus) {
		if o != nil {
			b.observer = o
		}
	}
}

type envelope struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus implements EventPublisher with in-process pub/sub.
//
// Once started, events are queued and handled by a fixed set of workers. Events of the same
// aggregate always land on the same worker, so handlers observe them in publish order.
// Publish never waits for a handler: when a worker queue is full the event is dropped,
// logged and reported to the observer. Handler errors and panics never reach the publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	observer DeliveryObserver
	cfg      BusConfig

	mu      sync.RWMutex
	running bool
	stopped bool
	queues  []chan envelope
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, cfg BusConfig, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultBusConfig().QueueSize
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
		observer: noopObserver{},
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to their handlers. Before Start, or with zero workers, handlers run
// synchronously on the caller's goroutine; a started bus with workers only enqueues.
// The returned error only reports a stopped bus.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return ErrBusStopped
	}

	for _, event := range events {
		if !b.running || len(b.queues) == 0 {
			b.dispatch(ctx, event)
			continue
		}

		// Handlers outlive the request that raised the event
		env := envelope{ctx: context.WithoutCancel(ctx), event: event}
		select {
		case b.queues[b.shard(event)] <- env:
		default:
			b.logger.Error("Event queue full, dropping event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()))
			b.observer.EventDelivered(BusHandlerName, event.EventType(), OutcomeDropped)
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("Handler unsubscribed")
}

// Start launches the dispatch workers
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrBusStopped
	}
	if b.running {
		return nil
	}

	b.queues = make([]chan envelope, b.cfg.Workers)
	for i := range b.queues {
		q := make(chan envelope, b.cfg.QueueSize)
		b.queues[i] = q
		b.wg.Add(1)
		go b.work(q)
	}
	b.running = true

	b.logger.Info("Event bus started",
		zap.Int("workers", b.cfg.Workers),
		zap.Int("queue_size", b.cfg.QueueSize))
	return nil
}

// Stop refuses new events, drains the queues and waits for the workers. If ctx expires
// first, ctx.Err() is returned and the remaining events are handled in the background.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.running = false
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus stop timed out, events still in flight")
		return ctx.Err()
	}
}

// Pending returns the number of queued events not yet picked up by a worker
func (b *InMemoryEventBus) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, q := range b.queues {
		n += len(q)
	}
	return n
}

func (b *InMemoryEventBus) work(queue <-chan envelope) {
	defer b.wg.Done()
	for env := range queue {
		b.dispatch(env.ctx, env.event)
	}
}

func (b *InMemoryEventBus) shard(event shared.DomainEvent) int {
	id := event.AggregateID()
	return int(binary.BigEndian.Uint32(id[12:]) % uint32(len(b.queues)))
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.logger.Error("Handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err))
		}
	}
}

// dispatchToHandler runs one handler and turns a panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r))
			err = errors.New("handler panicked")
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
