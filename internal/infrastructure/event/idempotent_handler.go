package event

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Delivery outcomes reported to a DeliveryObserver
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	// OutcomeDropped is reported by the bus when a worker queue is full
	OutcomeDropped = "dropped"
)

// DeliveryObserver is told what happened to each delivery. *telemetry.LedgerMetrics satisfies it.
type DeliveryObserver interface {
	EventDelivered(handler, eventType, outcome string)
}

type noopObserver struct{}

func (noopObserver) EventDelivered(string, string, string) {}

// IdempotentHandler lets a side effect run at most once per event, however often the event is
// delivered. Keys are scoped by handler name: two handlers sharing one store each get the event.
//
// A store error does not block the handler; a missed side effect is worse than a repeated one.
// A handler error leaves the key marked until its TTL runs out.
type IdempotentHandler struct {
	inner    shared.EventHandler
	name     string
	store    shared.IdempotencyStore
	cfg      shared.IdempotencyConfig
	logger   *zap.Logger
	observer DeliveryObserver
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.cfg = cfg }
}

func WithDeliveryObserver(o DeliveryObserver) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithHandlerName sets the key scope. The default is the wrapped handler's type name.
func WithHandlerName(name string) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if name != "" {
			h.name = name
		}
	}
}

// NewIdempotentHandler wraps inner. Keys live for 24h unless configured otherwise.
func NewIdempotentHandler(inner shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		inner:    inner,
		name:     fmt.Sprintf("%T", inner),
		store:    store,
		cfg:      shared.IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true},
		logger:   logger,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.inner.EventTypes()
}

// Key is the store key of event for this handler
func (h *IdempotentHandler) Key(event shared.DomainEvent) string {
	return fmt.Sprintf("event:%s:%s", h.name, event.EventID())
}

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.cfg.Enabled || h.store == nil {
		return h.inner.Handle(ctx, event)
	}

	first, err := h.store.MarkProcessed(ctx, h.Key(event), h.cfg.TTL)
	if err != nil {
		h.logger.Warn("Idempotency check failed, processing anyway",
			zap.String("handler", h.name),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err))
	} else if !first {
		h.logger.Debug("Duplicate event skipped",
			zap.String("handler", h.name),
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()))
		h.observer.EventDelivered(h.name, event.EventType(), OutcomeDuplicate)
		return nil
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		h.observer.EventDelivered(h.name, event.EventType(), OutcomeFailed)
		return err
	}
	h.observer.EventDelivered(h.name, event.EventType(), OutcomeProcessed)
	return nil
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.inner
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
