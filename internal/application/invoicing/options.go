package invoicing

import (
	"context"
	"time"

	"github.com/invoiceledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Metrics receives ledger outcomes. telemetry.LedgerMetrics implements it.
type Metrics interface {
	PaymentRecorded(method, currency string, minorUnits int64)
	PaymentRejected(code string)
	SaveConflict()
	ObserveRecordDuration(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) PaymentRecorded(string, string, int64) {}
func (nopMetrics) PaymentRejected(string)                {}
func (nopMetrics) SaveConflict()                         {}
func (nopMetrics) ObserveRecordDuration(time.Duration)   {}

// Option configures InvoiceService and PaymentRecorder
type Option func(*options)

type options struct {
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		metrics: nopMetrics{},
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEventPublisher publishes domain events after every successful save
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// publishEvents hands the invoice's pending events to the bus. Delivery problems are logged;
// they never undo or fail the saved change.
func (o options) publishEvents(ctx context.Context, inv interface {
	PullDomainEvents() []shared.DomainEvent
}) {
	events := inv.PullDomainEvents()
	if o.publisher == nil || len(events) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, events...); err != nil {
		o.logger.Warn("Failed to publish domain events",
			zap.Int("event_count", len(events)),
			zap.Error(err))
	}
}
