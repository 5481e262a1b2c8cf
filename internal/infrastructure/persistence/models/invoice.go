package models

import (
	"time"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model of the Invoice aggregate.
// Money columns hold minor units; line items and payments are JSON documents.
// The (tenant_id, invoice_number) unique index is created by the SQL migrations.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber string              `gorm:"type:varchar(50);not null"`
	ClientRef     string              `gorm:"type:varchar(100);not null;index"`
	Currency      string              `gorm:"type:varchar(3);not null"`
	LineItems     invoicing.LineItems `gorm:"type:jsonb;not null"`
	Subtotal      int64               `gorm:"not null"`
	Discount      int64               `gorm:"not null;default:0"`
	TotalAmount   int64               `gorm:"not null"`
	AmountPaid    int64               `gorm:"not null;default:0"`
	AmountDue     int64               `gorm:"not null"`
	DueDate       time.Time           `gorm:"type:date;not null;index"`
	Status        string              `gorm:"type:varchar(20);not null;index"`
	Payments      invoicing.Payments  `gorm:"type:jsonb;not null"`
	Notes         string              `gorm:"type:text"`
	SentAt        *time.Time
	ViewedAt      *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// InvoiceModelFromDomain converts a domain Invoice to its persistence model
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		Currency:      inv.Currency.String(),
		LineItems:     inv.LineItems,
		Subtotal:      inv.Subtotal.MinorUnits(),
		Discount:      inv.Discount.MinorUnits(),
		TotalAmount:   inv.TotalAmount.MinorUnits(),
		AmountPaid:    inv.AmountPaid.MinorUnits(),
		AmountDue:     inv.AmountDue.MinorUnits(),
		DueDate:       inv.DueDate,
		Status:        inv.Status.String(),
		Payments:      inv.Payments,
		Notes:         inv.Notes,
		SentAt:        inv.SentAt,
		ViewedAt:      inv.ViewedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
	}
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	if m.LineItems == nil {
		m.LineItems = invoicing.LineItems{}
	}
	if m.Payments == nil {
		m.Payments = invoicing.Payments{}
	}
	return m
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	currency := valueobject.Currency(m.Currency)
	inv := &invoicing.Invoice{
		InvoiceNumber: m.InvoiceNumber,
		ClientRef:     m.ClientRef,
		Currency:      currency,
		LineItems:     m.LineItems,
		Subtotal:      valueobject.NewMoney(m.Subtotal, currency),
		Discount:      valueobject.NewMoney(m.Discount, currency),
		TotalAmount:   valueobject.NewMoney(m.TotalAmount, currency),
		AmountPaid:    valueobject.NewMoney(m.AmountPaid, currency),
		AmountDue:     valueobject.NewMoney(m.AmountDue, currency),
		DueDate:       invoicing.NormalizeDueDate(m.DueDate),
		Status:        invoicing.InvoiceStatus(m.Status),
		Payments:      m.Payments,
		Notes:         m.Notes,
		SentAt:        m.SentAt,
		ViewedAt:      m.ViewedAt,
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
		CancelReason:  m.CancelReason,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	if inv.Payments == nil {
		inv.Payments = invoicing.Payments{}
	}
	return inv
}
