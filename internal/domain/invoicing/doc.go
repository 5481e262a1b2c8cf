// Package invoicing holds the invoice ledger: an invoice's line items, monetary totals,
// payment history and lifecycle status.
//
// All amounts are kept in integer minor units (valueobject.Money). Status for payment-driven
// transitions is never chosen by callers; it is derived by Invoice.Evaluate from the amounts,
// the due date and the explicit send/view/cancel transitions.
package invoicing
