package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	invoiceapp "github.com/invoiceledger/backend/internal/application/invoicing"
	"github.com/invoiceledger/backend/internal/interfaces/http/dto"
)

// InvoiceHandler serves the invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices  *invoiceapp.InvoiceService
	documents *invoiceapp.DocumentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *invoiceapp.InvoiceService, documents *invoiceapp.DocumentService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, documents: documents}
}

// Create issues a draft invoice.
//
//	POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req invoiceapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.CreatedBy = h.userID(c)

	invoice, err := h.invoices.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// List returns a page of invoices.
//
//	GET /api/v1/invoices?status=overdue&client_ref=ACME&page=1&page_size=20
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var filter invoiceapp.InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.ValidationError(c, err)
		return
	}
	if filter.Page == 0 {
		filter.Page = dto.DefaultPage
	}
	if filter.PageSize == 0 {
		filter.PageSize = dto.DefaultPageSize
	}

	invoices, total, err := h.invoices.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Get returns one invoice with its status evaluated now.
//
//	GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	invoice, err := h.invoices.GetByID(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Totals returns the monetary snapshot.
//
//	GET /api/v1/invoices/:id/totals
func (h *InvoiceHandler) Totals(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	totals, err := h.invoices.Totals(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// Send delivers the invoice, or a reminder when it was already sent.
//
//	POST /api/v1/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	invoice, err := h.invoices.Send(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// MarkViewed records that the client opened the invoice.
//
//	POST /api/v1/invoices/:id/view
func (h *InvoiceHandler) MarkViewed(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	invoice, err := h.invoices.MarkViewed(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel cancels an unpaid invoice. The body is optional.
//
//	POST /api/v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}

	var req invoiceapp.CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.ValidationError(c, err)
			return
		}
	}

	invoice, err := h.invoices.Cancel(c.Request.Context(), tenantID, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// ListPayments returns the payment history in recording order.
//
//	GET /api/v1/invoices/:id/payments
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	payments, err := h.invoices.ListPayments(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Document renders the invoice PDF and streams it.
//
//	GET /api/v1/invoices/:id/document
func (h *InvoiceHandler) Document(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.documents.Render(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// PublishDocument stores the current PDF and returns a presigned download link.
//
//	POST /api/v1/invoices/:id/document/link
func (h *InvoiceHandler) PublishDocument(c *gin.Context) {
	tenantID, invoiceID, ok := h.scope(c)
	if !ok {
		return
	}
	link, err := h.documents.Publish(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}
