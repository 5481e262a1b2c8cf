package persistence

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
)

type invoiceNumberKey struct {
	tenantID uuid.UUID
	number   string
}

// InvoiceArena is an in-memory InvoiceRepository holding invoice records keyed by id.
// Stored records are never handed out: reads return copies and SaveWithLock replaces the
// record only if its version is still the one the caller loaded.
type InvoiceArena struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*invoicing.Invoice
	numbers  map[invoiceNumberKey]uuid.UUID
}

// NewInvoiceArena creates an empty arena
func NewInvoiceArena() *InvoiceArena {
	return &InvoiceArena{
		invoices: make(map[uuid.UUID]*invoicing.Invoice),
		numbers:  make(map[invoiceNumberKey]uuid.UUID),
	}
}

// FindByIDForTenant returns a copy of the stored invoice
func (a *InvoiceArena) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	inv, ok := a.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return snapshot(inv), nil
}

// FindByNumber returns a copy of the invoice with the given number
func (a *InvoiceArena) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	a.mu.RLock()
	id, ok := a.numbers[invoiceNumberKey{tenantID: tenantID, number: invoiceNumber}]
	a.mu.RUnlock()
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a.FindByIDForTenant(ctx, tenantID, id)
}

// FindAllForTenant returns copies of the invoices matching the filter
func (a *InvoiceArena) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	matches := a.match(tenantID, filter)
	slices.SortStableFunc(matches, compareInvoices(invoiceOrder(filter.OrderBy, filter.OrderDir)))

	offset := filter.Offset()
	if offset >= len(matches) {
		return []invoicing.Invoice{}, nil
	}
	end := len(matches)
	if limit := filter.Limit(); limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]invoicing.Invoice, 0, end-offset)
	for _, inv := range matches[offset:end] {
		result = append(result, *snapshot(inv))
	}
	return result, nil
}

// CountForTenant counts the invoices matching the filter
func (a *InvoiceArena) CountForTenant(_ context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) (int64, error) {
	return int64(len(a.match(tenantID, filter))), nil
}

// Create stores a new invoice
func (a *InvoiceArena) Create(_ context.Context, inv *invoicing.Invoice) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := invoiceNumberKey{tenantID: inv.TenantID, number: inv.InvoiceNumber}
	if _, exists := a.numbers[key]; exists {
		return shared.ErrAlreadyExists.WithMessage("Invoice number already exists")
	}
	if _, exists := a.invoices[inv.ID]; exists {
		return shared.ErrAlreadyExists
	}
	a.invoices[inv.ID] = snapshot(inv)
	a.numbers[key] = inv.ID
	return nil
}

// SaveWithLock replaces the stored invoice if it is still at inv.Version-1
func (a *InvoiceArena) SaveWithLock(_ context.Context, inv *invoicing.Invoice) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.invoices[inv.ID]
	if !ok || current.TenantID != inv.TenantID {
		return shared.ErrNotFound
	}
	if current.Version != inv.Version-1 {
		return invoicing.ErrConcurrentModification
	}
	a.invoices[inv.ID] = snapshot(inv)
	return nil
}

// Len returns the number of stored invoices
func (a *InvoiceArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.invoices)
}

func (a *InvoiceArena) match(tenantID uuid.UUID, filter invoicing.InvoiceFilter) []*invoicing.Invoice {
	a.mu.RLock()
	defer a.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matches []*invoicing.Invoice
	for _, inv := range a.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if filter.Status != nil && inv.Evaluate(filter.StatusAsOf) != *filter.Status {
			continue
		}
		if filter.ClientRef != "" && inv.ClientRef != filter.ClientRef {
			continue
		}
		if filter.PastDueAsOf != nil && !isPastDueAsOf(inv, *filter.PastDueAsOf) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(inv.InvoiceNumber), search) &&
			!strings.Contains(strings.ToLower(inv.ClientRef), search) {
			continue
		}
		matches = append(matches, inv)
	}
	return matches
}

// isPastDueAsOf mirrors the SQL predicate used by the GORM repository
func isPastDueAsOf(inv *invoicing.Invoice, asOf time.Time) bool {
	switch inv.Status {
	case invoicing.InvoiceStatusDraft, invoicing.InvoiceStatusCancelled:
		return false
	}
	return inv.AmountDue.IsPositive() && inv.DueDate.Before(asOf)
}

// snapshot copies an invoice without its pending events
func snapshot(inv *invoicing.Invoice) *invoicing.Invoice {
	c := inv.Clone()
	c.ClearDomainEvents()
	return c
}
