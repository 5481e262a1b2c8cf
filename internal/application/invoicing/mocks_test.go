package invoicing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// MockInvoiceRepository is a mock implementation of InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockDocumentGenerator is a mock implementation of invoicing.DocumentGenerator
type MockDocumentGenerator struct {
	mock.Mock
}

func (m *MockDocumentGenerator) GenerateDocument(ctx context.Context, inv *invoicing.Invoice) ([]byte, error) {
	args := m.Called(ctx, inv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockDocumentStore is a mock implementation of invoicing.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockDocumentStore) URL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockInvoiceSender is a mock implementation of invoicing.InvoiceSender
type MockInvoiceSender struct {
	mock.Mock
}

func (m *MockInvoiceSender) SendInvoice(ctx context.Context, delivery invoicing.InvoiceDelivery) error {
	args := m.Called(ctx, delivery)
	return args.Error(0)
}

// recordingMetrics collects metric calls for assertions
type recordingMetrics struct {
	mu          sync.Mutex
	recorded    []string
	rejected    []string
	conflicts   int
	durations   int
	sideEffects []string
}

func (r *recordingMetrics) PaymentRecorded(method, _ string, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, method)
}

func (r *recordingMetrics) PaymentRejected(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, code)
}

func (r *recordingMetrics) SaveConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *recordingMetrics) ObserveRecordDuration(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations++
}

func (r *recordingMetrics) SideEffectFailed(handler string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sideEffects = append(r.sideEffects, handler)
}

func usd(minor int64) valueobject.Money {
	return valueobject.NewMoney(minor, valueobject.USD)
}

// newDraftInvoice builds a draft invoice for the tenant with one line totalling the given minor units
func newDraftInvoice(t *testing.T, tenantID uuid.UUID, number string, total int64, dueDate time.Time) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(tenantID, invoicing.NewInvoiceInput{
		InvoiceNumber: number,
		ClientRef:     "client-42",
		Currency:      valueobject.USD,
		DueDate:       dueDate,
		LineItems: []invoicing.LineItemInput{
			{Description: "Website redesign", Rate: usd(total), Quantity: decimal.NewFromInt(1)},
		},
	}, testNow.AddDate(0, 0, -30))
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

// newSentInvoice builds an invoice that was sent twenty days before testNow
func newSentInvoice(t *testing.T, tenantID uuid.UUID, total int64, dueDate time.Time) *invoicing.Invoice {
	t.Helper()
	inv := newDraftInvoice(t, tenantID, "INV-2025-001", total, dueDate)
	require.NoError(t, inv.MarkSent(testNow.AddDate(0, 0, -20)))
	inv.ClearDomainEvents()
	return inv
}

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}
