package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SideEffectMetrics counts failures of asynchronous handlers
type SideEffectMetrics interface {
	SideEffectFailed(handler string)
}

// ErrDocumentsDisabled is returned when no document generator is configured
var ErrDocumentsDisabled = shared.NewDomainError("DOCUMENTS_DISABLED", "Document generation is not configured")

// DocumentKey returns the storage key of an invoice document. Invoice numbers are client supplied,
// so the key is built from ids only.
func DocumentKey(tenantID, invoiceID uuid.UUID) string {
	return fmt.Sprintf("invoices/%s/%s.pdf", tenantID, invoiceID)
}

// DocumentFilename is the download name of an invoice document
func DocumentFilename(invoiceNumber string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, invoiceNumber)
	if name = strings.TrimLeft(name, ". "); name == "" {
		name = "invoice"
	}
	return name + ".pdf"
}

// Document is a rendered invoice document
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentService renders invoice documents on demand and, as an event handler,
// regenerates the stored copy whenever the ledger of an invoice changes.
type DocumentService struct {
	repo      invoicing.InvoiceRepository
	generator invoicing.DocumentGenerator
	store     invoicing.DocumentStore
	failures  SideEffectMetrics
	logger    *zap.Logger
}

// NewDocumentService creates a new DocumentService. store may be nil, in which case
// documents are only rendered on demand.
func NewDocumentService(
	repo invoicing.InvoiceRepository,
	generator invoicing.DocumentGenerator,
	store invoicing.DocumentStore,
	failures SideEffectMetrics,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:      repo,
		generator: generator,
		store:     store,
		failures:  failures,
		logger:    logger,
	}
}

// Render generates the document of an invoice
func (s *DocumentService) Render(ctx context.Context, tenantID, invoiceID uuid.UUID) (*Document, error) {
	if s.generator == nil {
		return nil, ErrDocumentsDisabled
	}
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	data, err := s.generator.GenerateDocument(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to generate document for invoice %s: %w", inv.InvoiceNumber, err)
	}
	return &Document{
		Filename:    DocumentFilename(inv.InvoiceNumber),
		ContentType: invoicing.DocumentContentType,
		Data:        data,
	}, nil
}

// DocumentLink is a time-limited download location of a stored document
type DocumentLink struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Publish renders the current document, stores it and returns a presigned link to it
func (s *DocumentService) Publish(ctx context.Context, tenantID, invoiceID uuid.UUID) (*DocumentLink, error) {
	if s.generator == nil || s.store == nil {
		return nil, ErrDocumentsDisabled
	}
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	data, err := s.generator.GenerateDocument(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to generate document for invoice %s: %w", inv.InvoiceNumber, err)
	}

	key := DocumentKey(inv.TenantID, inv.ID)
	if err := s.store.Put(ctx, key, data, invoicing.DocumentContentType); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	url, err := s.store.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return &DocumentLink{Key: key, URL: url}, nil
}

// EventTypes implements shared.EventHandler
func (s *DocumentService) EventTypes() []string {
	return []string{invoicing.EventTypePaymentRecorded, invoicing.EventTypeInvoicePaid}
}

// Handle implements shared.EventHandler
func (s *DocumentService) Handle(ctx context.Context, event shared.DomainEvent) error {
	// The final payment raises InvoicePaid as well; that event produces the document.
	if recorded, ok := event.(*invoicing.PaymentRecordedEvent); ok && recorded.Status == invoicing.InvoiceStatusPaid {
		return nil
	}
	if s.generator == nil || s.store == nil {
		return nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "document", "store",
		telemetry.SpanAttrTenantID, event.TenantID().String(),
		telemetry.SpanAttrInvoiceID, event.AggregateID().String(),
	)
	defer span.End()

	if err := s.storeDocument(ctx, event); err != nil {
		telemetry.RecordError(span, err)
		if s.failures != nil {
			s.failures.SideEffectFailed("document")
		}
		s.logger.Error("Failed to store invoice document",
			zap.String("event_type", event.EventType()),
			zap.String("invoice_id", event.AggregateID().String()),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *DocumentService) storeDocument(ctx context.Context, event shared.DomainEvent) error {
	inv, err := s.repo.FindByIDForTenant(ctx, event.TenantID(), event.AggregateID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	data, err := s.generator.GenerateDocument(ctx, inv)
	if err != nil {
		return fmt.Errorf("generate document: %w", err)
	}
	key := DocumentKey(inv.TenantID, inv.ID)
	if err := s.store.Put(ctx, key, data, invoicing.DocumentContentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.logger.Info("Invoice document stored",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}
