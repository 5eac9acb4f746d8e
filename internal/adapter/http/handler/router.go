package handler

import (
	"school-fee-gateway/internal/adapter/http/middleware"
	redisStore "school-fee-gateway/internal/adapter/storage/redis"
	"school-fee-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	reportingHandler := NewReportingHandler(deps.ReportingSvc)

	// API v1 routes
	v1 := r.Group("/api/v1")

	payments := v1.Group("/payments")
	{
		// The verify callback comes from the gateway redirect and carries no
		// token; the others require the school identity JWT.
		payments.POST("/verify", rl("payments_verify"), paymentHandler.Verify)

		payments.POST("/initiate", jwtAuth, rl("payments_initiate"), paymentHandler.Initiate)
		payments.GET("/history/:studentId", jwtAuth, rl("reads"), reportingHandler.History)
		payments.GET("/status/:transactionUuid", jwtAuth, rl("reads"), reportingHandler.Status)
		payments.DELETE("/cleanup/:studentId", jwtAuth, adminOnly, rl("admin"), paymentHandler.CleanupStudent)
	}

	admin := v1.Group("/admin", jwtAuth, adminOnly)
	{
		admin.POST("/payments/cleanup-stale", rl("admin"), paymentHandler.CleanupStale)
		admin.GET("/payments/stats", rl("admin"), reportingHandler.Stats)
		admin.GET("/reconciliation-failures", rl("admin"), reportingHandler.ReconciliationFailures)
		admin.POST("/reconciliation-failures/:transactionUuid/rerun", rl("admin"), paymentHandler.Reconcile)
	}

	return r
}
