package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its invoice number within a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists invoices matching the filter
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID), filter)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// CountForTenant counts invoices matching the filter
func (r *GormInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter invoicing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists.WithMessage("Invoice number already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock writes every mutable column if the stored row is still at inv.Version-1.
// Columns are passed as a map so zero amounts (a fully paid invoice) are written too.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", inv.ID, inv.TenantID, inv.Version-1).
		Updates(map[string]any{
			"version":       model.Version,
			"updated_at":    model.UpdatedAt,
			"status":        model.Status,
			"amount_paid":   model.AmountPaid,
			"amount_due":    model.AmountDue,
			"payments":      model.Payments,
			"notes":         model.Notes,
			"sent_at":       model.SentAt,
			"viewed_at":     model.ViewedAt,
			"paid_at":       model.PaidAt,
			"cancelled_at":  model.CancelledAt,
			"cancel_reason": model.CancelReason,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicing.ErrConcurrentModification
	}
	return nil
}

func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}

	return query.Order(orderClause(invoiceOrder(filter.OrderBy, filter.OrderDir))).Order("id ASC")
}

func (r *GormInvoiceRepository) applyFilterWithoutPagination(query *gorm.DB, filter invoicing.InvoiceFilter) *gorm.DB {
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(client_ref) LIKE ?", pattern, pattern)
	}
	if filter.Status != nil {
		condition, args := statusCondition(*filter.Status, filter.StatusAsOf)
		query = query.Where(condition, args...)
	}
	if filter.ClientRef != "" {
		query = query.Where("client_ref = ?", filter.ClientRef)
	}
	if filter.PastDueAsOf != nil {
		query = query.Where("status NOT IN ? AND amount_due > 0 AND due_date < ?", unopened, *filter.PastDueAsOf)
	}
	return query
}

// unopened statuses are stored as is; every other status is derived from the amounts and dates
var unopened = []string{invoicing.InvoiceStatusDraft.String(), invoicing.InvoiceStatusCancelled.String()}

// statusCondition is the SQL form of Invoice.Evaluate on the date asOf
func statusCondition(status invoicing.InvoiceStatus, asOf time.Time) (string, []any) {
	const unpaid = "status NOT IN ? AND amount_due > 0 AND amount_paid = 0"
	asOf = invoicing.NormalizeDueDate(asOf)

	switch status {
	case invoicing.InvoiceStatusPaid:
		return "status NOT IN ? AND amount_due = 0", []any{unopened}
	case invoicing.InvoiceStatusPartiallyPaid:
		return "status NOT IN ? AND amount_due > 0 AND amount_paid > 0", []any{unopened}
	case invoicing.InvoiceStatusOverdue:
		return unpaid + " AND due_date < ?", []any{unopened, asOf}
	case invoicing.InvoiceStatusViewed:
		return unpaid + " AND due_date >= ? AND viewed_at IS NOT NULL", []any{unopened, asOf}
	case invoicing.InvoiceStatusSent:
		return unpaid + " AND due_date >= ? AND viewed_at IS NULL", []any{unopened, asOf}
	default:
		return "status = ?", []any{status.String()}
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
