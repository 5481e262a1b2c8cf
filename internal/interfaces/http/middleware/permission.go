package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/invoiceledger/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RequirePermission lets a request through when its JWT grants at least one of permissions.
// It runs after JWTAuth; a request without claims is unauthenticated, not forbidden.
func RequirePermission(log *zap.Logger, permissions ...string) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		switch {
		case claims == nil:
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
		case !claims.HasAnyPermission(permissions...):
			log.Warn("Permission denied",
				zap.String("request_id", GetRequestID(c)),
				zap.String("tenant_id", claims.TenantID),
				zap.String("user_id", claims.UserID),
				zap.Strings("required", permissions),
				zap.String("route", c.FullPath()))
			abortWithError(c, dto.ErrCodeForbidden, "Access denied: insufficient permissions")
		default:
			c.Next()
		}
	}
}
