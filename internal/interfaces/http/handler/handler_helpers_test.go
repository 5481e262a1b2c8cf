package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoiceapp "github.com/invoiceledger/backend/internal/application/invoicing"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/infrastructure/cache"
	"github.com/invoiceledger/backend/internal/infrastructure/persistence"
	"github.com/invoiceledger/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	data []byte
	err  error
}

func (g *fakeGenerator) GenerateDocument(_ context.Context, inv *invoicing.Invoice) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return append([]byte("%PDF-1.7 "+inv.InvoiceNumber+" "), g.data...), nil
}

type memoryStore struct {
	objects map[string][]byte
}

func (s *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *memoryStore) URL(_ context.Context, key string) (string, error) {
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	return "https://documents.example.test/" + key + "?X-Amz-Expires=900", nil
}

// testAPI wires the handlers over an in-memory ledger
type testAPI struct {
	engine   *gin.Engine
	repo     *persistence.InvoiceArena
	tenantID uuid.UUID
	userID   uuid.UUID
	idem     *cache.InMemoryIdempotencyStore
}

type apiOption func(*apiDeps)

type apiDeps struct {
	generator invoicing.DocumentGenerator
	store     invoicing.DocumentStore
}

func withDocuments(generator invoicing.DocumentGenerator, store invoicing.DocumentStore) apiOption {
	return func(d *apiDeps) {
		d.generator = generator
		d.store = store
	}
}

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()

	var deps apiDeps
	for _, opt := range opts {
		opt(&deps)
	}

	api := &testAPI{
		engine:   gin.New(),
		repo:     persistence.NewInvoiceArena(),
		tenantID: uuid.New(),
		userID:   uuid.New(),
		idem:     cache.NewInMemoryIdempotencyStore(),
	}
	t.Cleanup(func() { _ = api.idem.Close() })

	clock := func() time.Time { return testNow }
	invoices := invoiceapp.NewInvoiceService(api.repo, invoiceapp.WithClock(clock))
	recorder := invoiceapp.NewPaymentRecorder(api.repo, invoiceapp.WithClock(clock))
	documents := invoiceapp.NewDocumentService(api.repo, deps.generator, deps.store, nil, nil)

	invoiceHandler := NewInvoiceHandler(invoices, documents)
	paymentHandler := NewPaymentHandler(recorder, PaymentHandlerConfig{
		ConflictRetries: 3,
		Idempotency:     api.idem,
		IdempotencyTTL:  time.Hour,
	})

	api.engine.Use(func(c *gin.Context) {
		if tenant := c.GetHeader(middleware.TenantHeader); tenant != "" {
			c.Set(middleware.TenantIDKey, uuid.MustParse(tenant))
		}
		c.Set(middleware.JWTUserIDKey, api.userID.String())
		c.Next()
	})
	v1 := api.engine.Group("/api/v1/invoices")
	v1.POST("", invoiceHandler.Create)
	v1.GET("", invoiceHandler.List)
	v1.GET("/:id", invoiceHandler.Get)
	v1.GET("/:id/totals", invoiceHandler.Totals)
	v1.POST("/:id/send", invoiceHandler.Send)
	v1.POST("/:id/view", invoiceHandler.MarkViewed)
	v1.POST("/:id/cancel", invoiceHandler.Cancel)
	v1.GET("/:id/payments", invoiceHandler.ListPayments)
	v1.POST("/:id/payments", paymentHandler.Record)
	v1.GET("/:id/document", invoiceHandler.Document)
	v1.POST("/:id/document/link", invoiceHandler.PublishDocument)

	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeader, a.tenantID.String())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func createBody(number string) map[string]any {
	return map[string]any{
		"invoice_number": number,
		"client_ref":     "client-42",
		"currency":       "USD",
		"due_date":       "2025-04-01",
		"line_items": []map[string]string{
			{"description": "Hosting", "rate": "100", "quantity": "2"},
		},
	}
}

// createInvoice issues an invoice of 200.00 USD and returns its id
func (a *testAPI) createInvoice(t *testing.T, number string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/invoices", createBody(number))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataField(t, w, "id")
}

// sentInvoice issues and sends an invoice
func (a *testAPI) sentInvoice(t *testing.T, number string) string {
	t.Helper()
	id := a.createInvoice(t, number)
	w := a.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func dataMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := decodeResponse(t, w)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func dataField(t *testing.T, w *httptest.ResponseRecorder, field string) string {
	t.Helper()
	v, _ := dataMap(t, w)[field].(string)
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}
