package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	invoiceapp "github.com/invoiceledger/backend/internal/application/invoicing"
	"github.com/invoiceledger/backend/internal/infrastructure/auth"
	"github.com/invoiceledger/backend/internal/infrastructure/cache"
	"github.com/invoiceledger/backend/internal/infrastructure/config"
	"github.com/invoiceledger/backend/internal/infrastructure/persistence"
	"github.com/invoiceledger/backend/internal/infrastructure/telemetry"
	"github.com/invoiceledger/backend/internal/interfaces/http/dto"
	"github.com/invoiceledger/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(jwtEnabled bool) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "invoice-ledger", Env: "test", Version: "test"},
		HTTP: config.HTTPConfig{
			MaxBodySize:      1 << 20,
			RateLimitEnabled: true,
			RateLimitRPS:     100,
			RateLimitBurst:   100,
			CORSAllowOrigins: []string{"https://app.example.com"},
		},
		JWT: config.JWTConfig{
			Enabled:               jwtEnabled,
			Secret:                "router-test-secret-at-least-32-bytes!!",
			Issuer:                "invoice-ledger",
			AccessTokenExpiration: time.Hour,
		},
		Ledger:  config.LedgerConfig{Store: config.StoreMemory, ConflictRetries: 3, IdempotencyTTL: time.Hour},
		Metrics: config.MetricsConfig{Enabled: true, Namespace: "ledger_test", Path: "/metrics"},
	}
}

type testServer struct {
	engine  *gin.Engine
	jwt     *auth.JWTService
	metrics *telemetry.LedgerMetrics
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	repo := persistence.NewInvoiceArena()
	metrics := telemetry.NewLedgerMetrics(cfg.Metrics.Namespace)
	invoices := invoiceapp.NewInvoiceService(repo)
	recorder := invoiceapp.NewPaymentRecorder(repo, invoiceapp.WithMetrics(metrics))
	documents := invoiceapp.NewDocumentService(repo, nil, nil, metrics, nil)
	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idem.Close() })

	jwtService := auth.NewJWTService(cfg.JWT)
	engine, err := NewEngine(Options{
		Config: cfg,
		Handlers: Handlers{
			Invoice: handler.NewInvoiceHandler(invoices, documents),
			Payment: handler.NewPaymentHandler(recorder, handler.PaymentHandlerConfig{
				ConflictRetries: cfg.Ledger.ConflictRetries,
				Idempotency:     idem,
				IdempotencyTTL:  cfg.Ledger.IdempotencyTTL,
			}),
			Health:  handler.NewHealthHandler(cfg.App.Version, nil),
			Metrics: gin.WrapH(metrics.Handler()),
		},
		JWTService:  jwtService,
		HTTPMetrics: metrics,
	})
	require.NoError(t, err)

	return &testServer{engine: engine, jwt: jwtService, metrics: metrics}
}

func (s *testServer) request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, tenantID uuid.UUID, permissions ...string) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(auth.TokenInput{
		TenantID:    tenantID,
		UserID:      uuid.New(),
		Username:    "billing",
		Permissions: permissions,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

var newInvoice = map[string]any{
	"invoice_number": "INV-1",
	"client_ref":     "client-42",
	"currency":       "USD",
	"due_date":       "2099-01-01",
	"line_items":     []map[string]string{{"description": "Hosting", "rate": "100", "quantity": "2"}},
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

func TestNewEngine_HeaderTenantWithoutAuth(t *testing.T) {
	s := newTestServer(t, testConfig(false))
	tenant := map[string]string{"X-Tenant-ID": uuid.NewString()}

	w := s.request(http.MethodPost, "/api/v1/invoices", newInvoice, tenant)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))

	w = s.request(http.MethodGet, "/api/v1/invoices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewEngine_JWT(t *testing.T) {
	s := newTestServer(t, testConfig(true))
	tenantID := uuid.New()

	t.Run("missing token", func(t *testing.T) {
		w := s.request(http.MethodGet, "/api/v1/invoices", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", errorCodeOf(t, w))
	})

	t.Run("header tenant is ignored", func(t *testing.T) {
		w := s.request(http.MethodGet, "/api/v1/invoices", nil, map[string]string{"X-Tenant-ID": tenantID.String()})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing permission", func(t *testing.T) {
		headers := map[string]string{"Authorization": s.token(t, tenantID, auth.PermissionInvoiceRead)}
		w := s.request(http.MethodPost, "/api/v1/invoices", newInvoice, headers)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", errorCodeOf(t, w))
	})

	t.Run("allowed", func(t *testing.T) {
		headers := map[string]string{"Authorization": s.token(t, tenantID, auth.PermissionInvoiceRead, auth.PermissionInvoiceWrite)}
		w := s.request(http.MethodPost, "/api/v1/invoices", newInvoice, headers)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = s.request(http.MethodGet, "/api/v1/invoices", nil, headers)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("payments need their own permission", func(t *testing.T) {
		headers := map[string]string{"Authorization": s.token(t, tenantID, auth.PermissionInvoiceRead, auth.PermissionInvoiceWrite)}
		w := s.request(http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/payments",
			map[string]string{"amount": "1.00", "method": "cash"}, headers)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestNewEngine_PublicEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig(true))

	w := s.request(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.request(http.MethodGet, "/api/v1/invoices", nil, nil)
	w = s.request(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledger_test_http_requests_total")
}

func TestNewEngine_MetricsDisabled(t *testing.T) {
	cfg := testConfig(false)
	cfg.Metrics.Enabled = false
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusNotFound, s.request(http.MethodGet, "/metrics", nil, nil).Code)
}

func TestNewEngine_CORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig(true))

	w := s.request(http.MethodOptions, "/api/v1/invoices", nil, map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewEngine_BodyLimit(t *testing.T) {
	cfg := testConfig(false)
	cfg.HTTP.MaxBodySize = 16
	s := newTestServer(t, cfg)

	w := s.request(http.MethodPost, "/api/v1/invoices", newInvoice, map[string]string{"X-Tenant-ID": uuid.NewString()})

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
