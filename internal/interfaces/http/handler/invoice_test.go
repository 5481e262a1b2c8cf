package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceHandler_Create(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/invoices", createBody("INV-1"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, "INV-1", data["invoice_number"])
	assert.Equal(t, "draft", data["status"])
	assert.Equal(t, "200.00", data["total_amount"])
	assert.Equal(t, "200.00", data["amount_due"])
	assert.Equal(t, api.userID.String(), data["created_by"])
	assert.Equal(t, 1, api.repo.Len())
}

func TestInvoiceHandler_Create_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       `{"invoice_number":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name:       "missing line items",
			body:       map[string]any{"invoice_number": "INV-2", "client_ref": "c", "currency": "USD", "due_date": "2025-04-01"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "unsupported currency",
			body: func() map[string]any {
				b := createBody("INV-3")
				b["currency"] = "XYZ"
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_CURRENCY",
		},
		{
			name: "bad rate",
			body: func() map[string]any {
				b := createBody("INV-4")
				b["line_items"] = []map[string]string{{"description": "x", "rate": "ten", "quantity": "1"}}
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_LINE_ITEM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)

			w := api.do(t, http.MethodPost, "/api/v1/invoices", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
			assert.Zero(t, api.repo.Len())
		})
	}
}

func TestInvoiceHandler_Create_DuplicateNumber(t *testing.T) {
	api := newTestAPI(t)
	api.createInvoice(t, "INV-1")

	w := api.do(t, http.MethodPost, "/api/v1/invoices", createBody("INV-1"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_EXISTS", errorCode(t, w))
}

func TestInvoiceHandler_Get(t *testing.T) {
	api := newTestAPI(t)
	id := api.createInvoice(t, "INV-1")

	t.Run("found", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, dataField(t, w, "id"))
	})

	t.Run("unknown id", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, w))
	})

	t.Run("malformed id", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices/42", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other tenant", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id, nil, "X-Tenant-ID", uuid.NewString())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestInvoiceHandler_List(t *testing.T) {
	api := newTestAPI(t)
	api.createInvoice(t, "INV-1")
	api.sentInvoice(t, "INV-2")
	api.sentInvoice(t, "INV-3")

	t.Run("paged", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices?page=1&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(3), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		assert.Len(t, resp.Data, 2)
	})

	t.Run("by status", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices?status=sent", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, int64(2), resp.Meta.Total)
		assert.Equal(t, 20, resp.Meta.PageSize)
	})

	t.Run("invalid query", func(t *testing.T) {
		w := api.do(t, http.MethodGet, "/api/v1/invoices?page_size=500", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})
}

func TestInvoiceHandler_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	id := api.createInvoice(t, "INV-1")
	base := "/api/v1/invoices/" + id

	w := api.do(t, http.MethodPost, base+"/send", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent", dataField(t, w, "status"))

	w = api.do(t, http.MethodPost, base+"/view", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viewed", dataField(t, w, "status"))

	w = api.do(t, http.MethodGet, base+"/totals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "200.00", dataField(t, w, "amount_due"))
	assert.Equal(t, "0.00", dataField(t, w, "amount_paid"))

	w = api.do(t, http.MethodPost, base+"/cancel", map[string]string{"reason": "client went away"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", dataField(t, w, "status"))
	assert.Equal(t, "client went away", dataField(t, w, "cancel_reason"))

	w = api.do(t, http.MethodPost, base+"/send", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVOICE_CANCELLED", errorCode(t, w))
}

func TestInvoiceHandler_Cancel_WithoutBody(t *testing.T) {
	api := newTestAPI(t)
	id := api.createInvoice(t, "INV-1")

	w := api.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/cancel", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", dataField(t, w, "status"))
}

func TestInvoiceHandler_ListPayments_Empty(t *testing.T) {
	api := newTestAPI(t)
	id := api.sentInvoice(t, "INV-1")

	w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/payments", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeResponse(t, w).Data)
}

func TestInvoiceHandler_Document(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		api := newTestAPI(t)
		id := api.createInvoice(t, "INV-1")

		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/document", nil)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, "DOCUMENTS_DISABLED", errorCode(t, w))
	})

	t.Run("streams pdf", func(t *testing.T) {
		api := newTestAPI(t, withDocuments(&fakeGenerator{}, nil))
		id := api.createInvoice(t, "INV-1")

		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/document", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="INV-1.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Contains(t, w.Body.String(), "%PDF-1.7 INV-1")
	})

	t.Run("generator failure", func(t *testing.T) {
		api := newTestAPI(t, withDocuments(&fakeGenerator{err: errors.New("chrome crashed")}, nil))
		id := api.createInvoice(t, "INV-1")

		w := api.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/document", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
	})
}

func TestInvoiceHandler_PublishDocument(t *testing.T) {
	t.Run("needs a store", func(t *testing.T) {
		api := newTestAPI(t, withDocuments(&fakeGenerator{}, nil))
		id := api.createInvoice(t, "INV-1")

		w := api.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/document/link", nil)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("stores and links", func(t *testing.T) {
		store := &memoryStore{}
		api := newTestAPI(t, withDocuments(&fakeGenerator{}, store))
		id := api.createInvoice(t, "INV-1")

		w := api.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/document/link", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		key := "invoices/" + api.tenantID.String() + "/" + id + ".pdf"
		assert.Equal(t, key, dataField(t, w, "key"))
		assert.Contains(t, dataField(t, w, "url"), key)
		assert.Contains(t, store.objects, key)
	})
}
