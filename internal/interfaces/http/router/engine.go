package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoiceledger/backend/internal/infrastructure/auth"
	"github.com/invoiceledger/backend/internal/infrastructure/config"
	"github.com/invoiceledger/backend/internal/infrastructure/logger"
	"github.com/invoiceledger/backend/internal/interfaces/http/handler"
	"github.com/invoiceledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the endpoints served by the engine
type Handlers struct {
	Invoice *handler.InvoiceHandler
	Payment *handler.PaymentHandler
	Health  *handler.HealthHandler
	// Metrics serves the Prometheus scrape endpoint; nil leaves it unmounted
	Metrics gin.HandlerFunc
}

// Options configures NewEngine
type Options struct {
	Config   *config.Config
	Logger   *zap.Logger
	Handlers Handlers
	// JWTService is required when cfg.JWT.Enabled
	JWTService *auth.JWTService
	// HTTPMetrics records request counts and latency; nil disables it
	HTTPMetrics middleware.HTTPMetricsRecorder
}

// NewEngine builds the gin engine with the full middleware chain and all routes
func NewEngine(opts Options) (*gin.Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(opts.HTTPMetrics),
		middleware.Secure(cfg.IsProduction()),
		middleware.CORS(corsConfig(cfg.HTTP)),
	)

	if opts.Handlers.Health != nil {
		engine.GET("/health", opts.Handlers.Health.Health)
	}
	if opts.Handlers.Metrics != nil && cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, opts.Handlers.Metrics)
	}

	api := []gin.HandlerFunc{middleware.BodyLimit(cfg.HTTP.MaxBodySize)}
	if cfg.JWT.Enabled {
		api = append(api, middleware.JWTAuth(middleware.DefaultJWTConfig(opts.JWTService, log)))
	}
	api = append(api, middleware.Tenant(middleware.TenantMiddlewareConfig{
		HeaderEnabled: !cfg.JWT.Enabled,
		Logger:        log,
	}))
	// Rate limiting keys on the tenant, so it runs once the tenant is known
	if cfg.HTTP.RateLimitEnabled {
		api = append(api, middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)))
	}
	api = append(api, middleware.SpanAttributes())

	Mount(engine, DefaultAPIVersion, permissionGuard(cfg.JWT.Enabled, log), api, InvoiceRoutes(opts.Handlers))

	return engine, nil
}

// permissionGuard checks JWT permissions. Without authentication every caller of a tenant is trusted.
func permissionGuard(enabled bool, log *zap.Logger) guard {
	if !enabled {
		return allowAll
	}
	return func(permission string) gin.HandlerFunc {
		return middleware.RequirePermission(log, permission)
	}
}

// InvoiceRoutes is the invoice and payment API
func InvoiceRoutes(h Handlers) Resource {
	const (
		read   = auth.PermissionInvoiceRead
		write  = auth.PermissionInvoiceWrite
		record = auth.PermissionPaymentRecord
	)
	return Resource{
		Name:   "invoices",
		Prefix: "/invoices",
		Routes: []Route{
			{http.MethodPost, "", write, h.Invoice.Create},
			{http.MethodGet, "", read, h.Invoice.List},
			{http.MethodGet, "/:id", read, h.Invoice.Get},
			{http.MethodGet, "/:id/totals", read, h.Invoice.Totals},
			{http.MethodPost, "/:id/send", write, h.Invoice.Send},
			{http.MethodPost, "/:id/view", write, h.Invoice.MarkViewed},
			{http.MethodPost, "/:id/cancel", write, h.Invoice.Cancel},
			{http.MethodGet, "/:id/document", read, h.Invoice.Document},
			{http.MethodPost, "/:id/document/link", read, h.Invoice.PublishDocument},
			{http.MethodGet, "/:id/payments", read, h.Invoice.ListPayments},
			{http.MethodPost, "/:id/payments", record, h.Payment.Record},
		},
	}
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
