package printing

import (
	"context"
	"time"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceView is the data bound to the invoice template
type InvoiceView struct {
	Lang          string
	IssuerName    string
	IssuerEmail   string
	InvoiceNumber string
	ClientRef     string
	Currency      string
	Status        string
	IssuedAt      time.Time
	DueDate       time.Time
	Lines         []LineView
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Due           decimal.Decimal
	Payments      []PaymentView
	Notes         string
	CancelReason  string
}

// LineView is one billed row
type LineView struct {
	Description string
	Rate        decimal.Decimal
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
}

// PaymentView is one received payment
type PaymentView struct {
	RecordedAt time.Time
	Method     string
	Reference  string
	Amount     decimal.Decimal
}

// Issuer identifies who issues the documents
type Issuer struct {
	Name  string
	Email string
}

// InvoiceDocumentGenerator implements invoicing.DocumentGenerator
type InvoiceDocumentGenerator struct {
	engine   *TemplateEngine
	renderer PDFRenderer
	issuer   Issuer
	logger   *zap.Logger
	now      func() time.Time
}

// NewInvoiceDocumentGenerator creates a generator rendering with engine and printing with renderer
func NewInvoiceDocumentGenerator(engine *TemplateEngine, renderer PDFRenderer, issuer Issuer, logger *zap.Logger) *InvoiceDocumentGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceDocumentGenerator{
		engine:   engine,
		renderer: renderer,
		issuer:   issuer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RenderHTML binds the invoice to the template; the status shown is evaluated at generation time
func (g *InvoiceDocumentGenerator) RenderHTML(inv *invoicing.Invoice) (string, error) {
	return g.engine.Render(InvoiceTemplateName, g.view(inv))
}

// GenerateDocument renders the invoice as PDF bytes
func (g *InvoiceDocumentGenerator) GenerateDocument(ctx context.Context, inv *invoicing.Invoice) ([]byte, error) {
	page, err := g.RenderHTML(inv)
	if err != nil {
		return nil, err
	}

	result, err := g.renderer.Render(ctx, &RenderRequest{
		HTML:       page,
		Title:      "Invoice " + inv.InvoiceNumber,
		PaperSize:  PaperSizeForLocale(g.engine.Region()),
		Margins:    DefaultMargins(),
		FooterHTML: footerTemplate,
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Invoice document generated",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("pages", result.PageCount),
		zap.Duration("duration", result.RenderDuration))
	return result.PDFData, nil
}

func (g *InvoiceDocumentGenerator) view(inv *invoicing.Invoice) InvoiceView {
	v := InvoiceView{
		Lang:          g.engine.Locale().String(),
		IssuerName:    g.issuer.Name,
		IssuerEmail:   g.issuer.Email,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		Currency:      inv.Currency.String(),
		Status:        inv.Evaluate(g.now()).String(),
		IssuedAt:      inv.CreatedAt,
		DueDate:       inv.DueDate,
		Subtotal:      inv.Subtotal.Decimal(),
		Discount:      inv.Discount.Decimal(),
		Total:         inv.TotalAmount.Decimal(),
		Paid:          inv.AmountPaid.Decimal(),
		Due:           inv.AmountDue.Decimal(),
		Notes:         inv.Notes,
		CancelReason:  inv.CancelReason,
		Lines:         make([]LineView, 0, len(inv.LineItems)),
		Payments:      make([]PaymentView, 0, len(inv.Payments)),
	}
	if inv.SentAt != nil {
		v.IssuedAt = *inv.SentAt
	}
	for _, item := range inv.LineItems {
		v.Lines = append(v.Lines, LineView{
			Description: item.Description,
			Rate:        item.Rate.Decimal(),
			Quantity:    item.Quantity,
			Amount:      item.Amount.Decimal(),
		})
	}
	for _, p := range inv.Payments {
		v.Payments = append(v.Payments, PaymentView{
			RecordedAt: p.RecordedAt,
			Method:     p.Method.String(),
			Reference:  p.TransactionID,
			Amount:     p.Amount.Decimal(),
		})
	}
	return v
}

// Chrome substitutes the pageNumber and totalPages classes
const footerTemplate = `<div style="font-size:8pt;width:100%;text-align:center;color:#777;">` +
	`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`

var _ invoicing.DocumentGenerator = (*InvoiceDocumentGenerator)(nil)
