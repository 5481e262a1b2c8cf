package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. Events leave the aggregate only after it was
// saved, so handlers never observe a change that lost its version race.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// EventHeader identifies an event and the aggregate that raised it. Concrete events embed it
// and add their payload.
type EventHeader struct {
	ID            uuid.UUID `json:"event_id"`
	Type          string    `json:"event_type"`
	At            time.Time `json:"occurred_at"`
	Aggregate     uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
	Tenant        uuid.UUID `json:"tenant_id"`
}

// NewEventHeader stamps a new event id
func NewEventHeader(eventType, aggregateKind string, aggregateID, tenantID uuid.UUID, at time.Time) EventHeader {
	return EventHeader{
		ID:            uuid.New(),
		Type:          eventType,
		At:            at,
		Aggregate:     aggregateID,
		AggregateKind: aggregateKind,
		Tenant:        tenantID,
	}
}

func (h *EventHeader) EventID() uuid.UUID     { return h.ID }
func (h *EventHeader) EventType() string      { return h.Type }
func (h *EventHeader) OccurredAt() time.Time  { return h.At }
func (h *EventHeader) AggregateID() uuid.UUID { return h.Aggregate }
func (h *EventHeader) AggregateType() string  { return h.AggregateKind }
func (h *EventHeader) TenantID() uuid.UUID    { return h.Tenant }

// EventHandler reacts to published events. Handlers run after the request that raised the
// event has answered; their errors are logged, never returned to that request.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types to deliver; empty means all of them
	EventTypes() []string
}

// EventPublisher hands saved events to their handlers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
