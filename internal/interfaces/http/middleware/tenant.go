package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/infrastructure/logger"
	"github.com/invoiceledger/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// TenantIDKey is the gin context key of the resolved tenant
const TenantIDKey = "tenant_id"

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// HeaderEnabled allows X-Tenant-ID when no JWT claim is present. Only meant for
	// deployments running without authentication.
	HeaderEnabled bool
	SkipPaths     []string
	Logger        *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: false,
		SkipPaths:     []string{"/health", "/metrics"},
	}
}

// Tenant resolves the tenant of the request. The JWT claim wins; the header is consulted only
// when enabled. A request without a tenant is rejected, since every ledger lives in one.
func Tenant(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		raw, source := GetJWTTenantID(c), "jwt"
		if raw == "" && cfg.HeaderEnabled {
			raw, source = c.GetHeader(TenantHeader), "header"
		}
		if raw == "" {
			abortWithError(c, dto.ErrCodeUnauthorized, "Tenant identification required")
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, tenantID)
		if source == "header" {
			c.Request = c.Request.WithContext(logger.WithIdentity(c.Request.Context(), raw, ""))
		}
		cfg.Logger.Debug("Tenant identified",
			zap.String("tenant_id", raw),
			zap.String("method", source))

		c.Next()
	}
}

// GetTenantID returns the tenant resolved by Tenant; uuid.Nil when absent
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
