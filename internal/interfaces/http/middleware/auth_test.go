package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/infrastructure/auth"
	"github.com/invoiceledger/backend/internal/infrastructure/config"
	"github.com/invoiceledger/backend/internal/infrastructure/logger"
	"github.com/invoiceledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Enabled:               true,
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "test-issuer",
		AccessTokenExpiration: expiration,
	})
}

func newTestToken(t *testing.T, svc *auth.JWTService, permissions ...string) (string, auth.TokenInput) {
	t.Helper()
	input := auth.TokenInput{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "accountant",
		Permissions: permissions,
	}
	token, _, err := svc.GenerateAccessToken(input)
	require.NoError(t, err)
	return token, input
}

func authRouter(svc *auth.JWTService, handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuth(DefaultJWTConfig(svc, nil)), Tenant(DefaultTenantConfig()))
	router.GET("/health", okHandler)
	router.GET("/test", append(handlers, okHandler)...)
	return router
}

func TestJWTAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	token, input := newTestToken(t, svc, auth.PermissionInvoiceRead)

	router := gin.New()
	router.Use(JWTAuth(DefaultJWTConfig(svc, nil)), Tenant(DefaultTenantConfig()))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, input.UserID.String(), GetJWTUserID(c))
		assert.Equal(t, input.TenantID, GetTenantID(c))
		assert.Equal(t, input.TenantID.String(), logger.GetTenantID(c.Request.Context()))
		assert.Equal(t, input.UserID.String(), logger.GetUserID(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_Rejections(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	expired := newTestJWTService(-time.Minute)
	expiredToken, _ := newTestToken(t, expired)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer ", dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer not.a.token", dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + expiredToken, dto.ErrCodeTokenExpired},
	}

	router := authRouter(svc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	router := authRouter(newTestJWTService(time.Minute))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenant_Header(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name          string
		headerEnabled bool
		header        string
		wantStatus    int
	}{
		{"header accepted when enabled", true, tenantID.String(), http.StatusOK},
		{"header ignored when disabled", false, tenantID.String(), http.StatusUnauthorized},
		{"missing tenant", true, "", http.StatusUnauthorized},
		{"malformed tenant", true, "acme", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig()
			cfg.HeaderEnabled = tt.headerEnabled

			router := gin.New()
			router.Use(Tenant(cfg))
			router.GET("/test", func(c *gin.Context) {
				assert.Equal(t, tenantID, GetTenantID(c))
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTenant_JWTWinsOverHeader(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	token, input := newTestToken(t, svc)

	cfg := DefaultTenantConfig()
	cfg.HeaderEnabled = true

	router := gin.New()
	router.Use(JWTAuth(DefaultJWTConfig(svc, nil)), Tenant(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetTenantID(c).String())
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.Header.Set(TenantHeader, uuid.NewString())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, input.TenantID.String(), w.Body.String())
}

func TestGetTenantID_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, uuid.Nil, GetTenantID(c))
}

func TestRequirePermission(t *testing.T) {
	svc := newTestJWTService(time.Minute)
	requirePay := RequirePermission(nil, auth.PermissionPaymentRecord, auth.PermissionInvoiceWrite)

	tests := []struct {
		name        string
		permissions []string
		wantStatus  int
	}{
		{"exact permission", []string{auth.PermissionPaymentRecord}, http.StatusOK},
		{"any of the listed", []string{auth.PermissionInvoiceWrite}, http.StatusOK},
		{"missing permission", []string{auth.PermissionInvoiceRead}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}

	router := authRouter(svc, requirePay)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := newTestToken(t, svc, tt.permissions...)
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(AuthHeaderKey, BearerPrefix+token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Code)
			}
		})
	}
}

func TestRequirePermission_WithoutClaims(t *testing.T) {
	router := gin.New()
	router.GET("/test", RequirePermission(nil, auth.PermissionInvoiceRead), okHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
