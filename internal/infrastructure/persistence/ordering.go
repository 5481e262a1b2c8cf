package persistence

import (
	"bytes"
	"cmp"
	"strings"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
)

const defaultInvoiceOrder = "created_at"

// invoiceColumns are the list orderings both repositories accept. The key doubles as the SQL
// column, so anything outside this table never reaches a query.
var invoiceColumns = map[string]func(x, y *invoicing.Invoice) int{
	"created_at":     func(x, y *invoicing.Invoice) int { return x.CreatedAt.Compare(y.CreatedAt) },
	"updated_at":     func(x, y *invoicing.Invoice) int { return x.UpdatedAt.Compare(y.UpdatedAt) },
	"due_date":       func(x, y *invoicing.Invoice) int { return x.DueDate.Compare(y.DueDate) },
	"invoice_number": func(x, y *invoicing.Invoice) int { return strings.Compare(x.InvoiceNumber, y.InvoiceNumber) },
	"total_amount":   func(x, y *invoicing.Invoice) int { return cmp.Compare(x.TotalAmount.MinorUnits(), y.TotalAmount.MinorUnits()) },
	"amount_due":     func(x, y *invoicing.Invoice) int { return cmp.Compare(x.AmountDue.MinorUnits(), y.AmountDue.MinorUnits()) },
	"status":         func(x, y *invoicing.Invoice) int { return strings.Compare(string(x.Status), string(y.Status)) },
}

// invoiceOrder resolves a requested ordering. Unknown columns fall back to created_at and
// anything but "asc" sorts descending.
func invoiceOrder(orderBy, orderDir string) (column string, desc bool) {
	column = strings.TrimSpace(orderBy)
	if _, ok := invoiceColumns[column]; !ok {
		column = defaultInvoiceOrder
	}
	return column, !strings.EqualFold(strings.TrimSpace(orderDir), "asc")
}

// orderClause is the ORDER BY term for a resolved ordering
func orderClause(column string, desc bool) string {
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}

// compareInvoices orders like the SQL query, including the id tie-break
func compareInvoices(column string, desc bool) func(x, y *invoicing.Invoice) int {
	byColumn := invoiceColumns[column]
	return func(x, y *invoicing.Invoice) int {
		c := byColumn(x, y)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return bytes.Compare(x.ID[:], y.ID[:])
	}
}
