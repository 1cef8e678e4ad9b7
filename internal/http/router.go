// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/internal/ai"
	"github.com/tbourn/go-crm-backend/internal/config"
	"github.com/tbourn/go-crm-backend/internal/domain"
	"github.com/tbourn/go-crm-backend/internal/http/handlers"
	"github.com/tbourn/go-crm-backend/internal/http/middleware"
	"github.com/tbourn/go-crm-backend/internal/mail"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/services"
)

// leadRepoShim adapts the repository free functions to the services.LeadRepo
// interface expected by the LeadService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type leadRepoShim struct{}

// CreateLead proxies repo.CreateLead.
func (leadRepoShim) CreateLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error) {
	return repo.CreateLead(ctx, db, l)
}

// UpsertLead proxies repo.UpsertLead.
func (leadRepoShim) UpsertLead(ctx context.Context, db *gorm.DB, l *domain.Lead) (*domain.Lead, error) {
	return repo.UpsertLead(ctx, db, l)
}

// ListLeads proxies repo.ListLeads.
func (leadRepoShim) ListLeads(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Lead, error) {
	return repo.ListLeads(ctx, db, tenantID)
}

// GetLead proxies repo.GetLead.
func (leadRepoShim) GetLead(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Lead, error) {
	return repo.GetLead(ctx, db, id, tenantID)
}

// UpdateLeadStage proxies repo.UpdateLeadStage.
func (leadRepoShim) UpdateLeadStage(ctx context.Context, db *gorm.DB, id, tenantID, stage string) error {
	return repo.UpdateLeadStage(ctx, db, id, tenantID, stage)
}

// UpdateLeadAnalysis proxies repo.UpdateLeadAnalysis.
func (leadRepoShim) UpdateLeadAnalysis(ctx context.Context, db *gorm.DB, id, tenantID string, a domain.AiAnalysis) error {
	return repo.UpdateLeadAnalysis(ctx, db, id, tenantID, a)
}

// DeleteLead proxies repo.DeleteLead.
func (leadRepoShim) DeleteLead(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	return repo.DeleteLead(ctx, db, id, tenantID)
}

// CountLeads proxies repo.CountLeads (pagination support).
func (leadRepoShim) CountLeads(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	return repo.CountLeads(ctx, db, tenantID)
}

// ListLeadsPage proxies repo.ListLeadsPage (pagination support).
func (leadRepoShim) ListLeadsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Lead, error) {
	return repo.ListLeadsPage(ctx, db, tenantID, offset, limit)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Tenant: resolve the requesting tenant
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter, gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per tenant/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, advisor *ai.Advisor, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Resolve the tenant for data scoping
	r.Use(middleware.Tenant(cfg.DefaultTenant))

	// 4) Structured logging with redaction (lead payloads carry PII)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, tenantID, leadID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, tenantID, leadID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per tenant/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByTenantOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Tenant-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Tenant-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/advisor/mail
	leadSvc := services.NewLeadService(db, leadRepoShim{}, advisor)
	msgSvc := services.NewMessageService(db, advisor)
	msgSvc.MaxMessageLen = cfg.MaxMessageLen
	autoSvc := services.NewAutomationService(db)
	settingsSvc := services.NewSettingsService(db)

	var sender mail.Sender
	if cfg.SMTP.Host != "" {
		sender = mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}
	outreachSvc := services.NewOutreachService(db, sender)

	h := handlers.New(leadSvc, msgSvc, autoSvc, settingsSvc, outreachSvc, db)
	h.IdempotencyTTL = cfg.IdempotencyTTL

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Leads
		api.POST("/leads", h.SaveLead)
		api.GET("/leads", h.ListLeads)
		api.POST("/leads/parse", h.ParseLead)
		api.GET("/leads/:id", h.GetLead)
		api.PUT("/leads/:id/stage", h.UpdateLeadStage)
		api.DELETE("/leads/:id", h.DeleteLead)
		api.POST("/leads/:id/score", h.ScoreLead)
		api.POST("/leads/:id/analyze", h.AnalyzeLead)
		api.POST("/leads/:id/outreach", h.OutreachLead)

		// Messages
		api.GET("/leads/:id/messages", h.ListLeadMessages)
		api.POST("/leads/:id/messages", h.PostLeadMessage)

		// Automations
		api.GET("/automations", h.ListAutomations)
		api.POST("/automations", h.SaveAutomation)
		api.DELETE("/automations/:id", h.DeleteAutomation)

		// Settings & profile
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.SaveSettings)
		api.PUT("/settings/templates/:id/default", h.SetDefaultTemplate)
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile", h.SaveProfile)

		// Admin
		api.POST("/admin/reset", h.ResetTenant)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
