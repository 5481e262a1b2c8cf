package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repoNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestInvoice(t *testing.T, tenantID uuid.UUID, number, clientRef string, totalMinor int64, due time.Time) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(tenantID, invoicing.NewInvoiceInput{
		InvoiceNumber: number,
		ClientRef:     clientRef,
		Currency:      valueobject.USD,
		DueDate:       due,
		LineItems: []invoicing.LineItemInput{{
			Description: "Consulting",
			Rate:        valueobject.NewMoney(totalMinor, valueobject.USD),
			Quantity:    decimal.NewFromInt(1),
		}},
	}, repoNow.Add(-30*24*time.Hour))
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func pay(t *testing.T, inv *invoicing.Invoice, minor int64, txn string) *invoicing.Invoice {
	t.Helper()
	next, _, err := invoicing.RecordPayment(inv, invoicing.PaymentRequest{
		Amount:        valueobject.NewMoney(minor, valueobject.USD),
		Method:        invoicing.PaymentMethodBankTransfer,
		TransactionID: txn,
	}, repoNow)
	require.NoError(t, err)
	return next
}

// createSent stores a new invoice and saves it again as sent
func createSent(t *testing.T, repo invoicing.InvoiceRepository, inv *invoicing.Invoice) *invoicing.Invoice {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, inv))
	sent := inv.Clone()
	require.NoError(t, sent.MarkSent(repoNow.Add(-20*24*time.Hour)))
	require.NoError(t, repo.SaveWithLock(ctx, sent))
	return sent
}

// runInvoiceRepositoryContract checks the behaviour every InvoiceRepository must share
func runInvoiceRepositoryContract(t *testing.T, newRepo func(t *testing.T) invoicing.InvoiceRepository) {
	ctx := context.Background()
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := uuid.New()
		inv := newTestInvoice(t, tenantID, "INV-001", "acme", 100000, due)
		require.NoError(t, repo.Create(ctx, inv))

		found, err := repo.FindByIDForTenant(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "INV-001", found.InvoiceNumber)
		assert.Equal(t, int64(100000), found.TotalAmount.MinorUnits())
		assert.Equal(t, int64(100000), found.AmountDue.MinorUnits())
		assert.True(t, found.AmountPaid.IsZero())
		assert.Equal(t, invoicing.InvoiceStatusDraft, found.Status)
		assert.True(t, due.Equal(found.DueDate))
		assert.Len(t, found.LineItems, 1)
		assert.Empty(t, found.Payments)
		assert.Equal(t, 1, found.Version)

		byNumber, err := repo.FindByNumber(ctx, tenantID, "INV-001")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, byNumber.ID)

		_, err = repo.FindByIDForTenant(ctx, uuid.New(), inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByNumber(ctx, tenantID, "INV-404")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("invoice number is unique per tenant", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := uuid.New()
		require.NoError(t, repo.Create(ctx, newTestInvoice(t, tenantID, "INV-001", "acme", 1000, due)))

		err := repo.Create(ctx, newTestInvoice(t, tenantID, "INV-001", "globex", 2000, due))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)

		assert.NoError(t, repo.Create(ctx, newTestInvoice(t, uuid.New(), "INV-001", "acme", 1000, due)))
	})

	t.Run("save persists payments and zero amount due", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := uuid.New()
		sent := createSent(t, repo, newTestInvoice(t, tenantID, "INV-002", "acme", 60000, due))

		paid := pay(t, sent, 60000, "txn-1")
		require.NoError(t, repo.SaveWithLock(ctx, paid))

		found, err := repo.FindByIDForTenant(ctx, tenantID, sent.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusPaid, found.Status)
		assert.True(t, found.AmountDue.IsZero())
		assert.Equal(t, int64(60000), found.AmountPaid.MinorUnits())
		require.Len(t, found.Payments, 1)
		assert.Equal(t, "txn-1", found.Payments[0].TransactionID)
		assert.Equal(t, int64(60000), found.Payments[0].Amount.MinorUnits())
		assert.NotNil(t, found.SentAt)
		assert.NotNil(t, found.PaidAt)
		assert.Equal(t, 3, found.Version)
	})

	t.Run("stale save is rejected", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := uuid.New()
		sent := createSent(t, repo, newTestInvoice(t, tenantID, "INV-003", "acme", 100000, due))

		first := pay(t, sent, 40000, "txn-a")
		second := pay(t, sent, 30000, "txn-b")

		require.NoError(t, repo.SaveWithLock(ctx, first))
		err := repo.SaveWithLock(ctx, second)
		assert.ErrorIs(t, err, invoicing.ErrConcurrentModification)

		found, err := repo.FindByIDForTenant(ctx, tenantID, sent.ID)
		require.NoError(t, err)
		require.Len(t, found.Payments, 1)
		assert.Equal(t, "txn-a", found.Payments[0].TransactionID)
		assert.Equal(t, int64(60000), found.AmountDue.MinorUnits())
		assert.Equal(t, invoicing.InvoiceStatusPartiallyPaid, found.Status)
	})

	t.Run("list and count with filters", func(t *testing.T) {
		repo := newRepo(t)
		tenantID := uuid.New()
		pastDue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		overdue := createSent(t, repo, newTestInvoice(t, tenantID, "INV-010", "ACME-Corp", 50000, pastDue))
		createSent(t, repo, newTestInvoice(t, tenantID, "INV-011", "globex", 70000, due))
		draft := newTestInvoice(t, tenantID, "INV-012", "globex", 10000, pastDue)
		require.NoError(t, repo.Create(ctx, draft))
		settled := createSent(t, repo, newTestInvoice(t, tenantID, "INV-013", "initech", 20000, pastDue))
		require.NoError(t, repo.SaveWithLock(ctx, pay(t, settled, 20000, "")))
		require.NoError(t, repo.Create(ctx, newTestInvoice(t, uuid.New(), "INV-010", "acme", 1, pastDue)))

		all, err := repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 1, PageSize: 10, OrderBy: "invoice_number", OrderDir: "asc"},
		})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "INV-010", all[0].InvoiceNumber)
		assert.Equal(t, "INV-013", all[3].InvoiceNumber)

		page2, err := repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{
			Filter: shared.Filter{Page: 2, PageSize: 3, OrderBy: "invoice_number", OrderDir: "asc"},
		})
		require.NoError(t, err)
		require.Len(t, page2, 1)
		assert.Equal(t, "INV-013", page2[0].InvoiceNumber)

		asOf := invoicing.NormalizeDueDate(repoNow)
		overdueOnly := invoicing.InvoiceFilter{Filter: shared.Filter{Page: 1, PageSize: 10}, PastDueAsOf: &asOf}
		listed, err := repo.FindAllForTenant(ctx, tenantID, overdueOnly)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, overdue.ID, listed[0].ID)
		count, err := repo.CountForTenant(ctx, tenantID, overdueOnly)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		draftStatus := invoicing.InvoiceStatusDraft
		drafts, err := repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{Status: &draftStatus})
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, draft.ID, drafts[0].ID)

		// Stored as sent; evaluated on repoNow the first one has lapsed
		for status, number := range map[invoicing.InvoiceStatus]string{
			invoicing.InvoiceStatusOverdue: "INV-010",
			invoicing.InvoiceStatusSent:    "INV-011",
			invoicing.InvoiceStatusPaid:    "INV-013",
		} {
			filter := invoicing.InvoiceFilter{Status: &status, StatusAsOf: repoNow}
			matched, err := repo.FindAllForTenant(ctx, tenantID, filter)
			require.NoError(t, err)
			require.Len(t, matched, 1, status.String())
			assert.Equal(t, number, matched[0].InvoiceNumber)
			assert.Equal(t, status, matched[0].Evaluate(repoNow))
		}

		count, err = repo.CountForTenant(ctx, tenantID, invoicing.InvoiceFilter{ClientRef: "globex"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		searched, err := repo.FindAllForTenant(ctx, tenantID, invoicing.InvoiceFilter{Filter: shared.Filter{Search: "acme"}})
		require.NoError(t, err)
		require.Len(t, searched, 1)
		assert.Equal(t, "INV-010", searched[0].InvoiceNumber)
	})
}
