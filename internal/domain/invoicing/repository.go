package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/shared"
)

// InvoiceFilter extends shared.Filter with invoice-specific filters
type InvoiceFilter struct {
	shared.Filter
	// Status selects invoices whose evaluated status at StatusAsOf is Status, as Evaluate reports it
	Status     *InvoiceStatus
	StatusAsOf time.Time
	ClientRef  string
	// PastDueAsOf selects open invoices with money due whose due date is before this date,
	// partially paid ones included
	PastDueAsOf *time.Time
}

// InvoiceRepository is the storage collaborator of the ledger.
//
// Every mutating aggregate method bumps Version exactly once, so SaveWithLock expects the
// stored row to be at Version-1. A caller performs one mutation per load-save cycle.
type InvoiceRepository interface {
	// FindByIDForTenant loads an invoice; shared.ErrNotFound if it does not exist
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber loads an invoice by its display number
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForTenant lists invoices matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// CountForTenant counts invoices matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// Create inserts a new invoice; shared.ErrAlreadyExists if the number is taken
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock replaces the stored invoice if it is still at Version-1.
	// Returns ErrConcurrentModification when another writer got there first.
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
