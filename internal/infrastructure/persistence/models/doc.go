// Package models maps the invoicing aggregate to the invoices table.
//
// The domain Invoice carries no GORM tags. InvoiceModel holds the column layout and the
// conversions in both directions; line items and the payment history are JSONB columns so a
// whole ledger is read and written as one row, which is what the version check relies on.
package models
