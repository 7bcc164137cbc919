// Package httpapi wires the HTTP transport (Gin) to the webhook receiver and
// the read-model API: tracing, correlation IDs, structured logging, panic
// recovery, metrics, CORS, compression, and rate limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//
// The billing webhook is mounted outside the rate limiter and CORS: it is a
// machine-to-machine endpoint whose only guard is the HMAC signature, and
// rejecting authentic events with 429s would trigger provider retries.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/bridgeos/go-bridge-backend/internal/config"
	"github.com/bridgeos/go-bridge-backend/internal/http/handlers"
	"github.com/bridgeos/go-bridge-backend/internal/http/middleware"
	"github.com/bridgeos/go-bridge-backend/internal/services"
	"github.com/bridgeos/go-bridge-backend/internal/transport"
)

// RegisterRoutes attaches all middleware and endpoints to the engine.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, fleet transport.Fleet, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Billing webhook: HMAC-guarded, never rate limited.
	wh := &handlers.WebhookHandler{
		Secret:        cfg.WebhookSecret,
		Subscriptions: services.NewSubscriptionService(db, cfg.Checkout),
		Fleet:         fleet,
		NotifyTimeout: cfg.TransportTimeout,
	}
	r.POST("/webhook/billing", wh.HandleBillingWebhook)

	// Read model for the external dashboard: token auth, CORS, gzip, rate
	// limited.
	ah := &handlers.AdminHandler{DB: db, Token: cfg.AdminToken}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	admin := r.Group("/admin",
		corsFor(cfg.CORS.AllowedOrigins),
		gzip.Gzip(gzip.DefaultCompression),
		rl.Handler(),
		ah.Auth(),
	)
	{
		admin.GET("/stats", ah.GetStats)
		admin.GET("/connections", ah.ListConnections)
		admin.GET("/subscriptions", ah.ListSubscriptions)
		admin.GET("/feedback", ah.ListFeedback)
		admin.POST("/feedback/:id/read", ah.MarkFeedbackRead)
		admin.POST("/usage/:manager_id/reset", ah.ResetUsage)
	}
}

// corsFor builds the CORS posture for the read model: an explicit allowlist
// when configured, otherwise wide open (the token still gates access).
func corsFor(allowed []string) gin.HandlerFunc {
	if len(allowed) == 0 {
		return cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
			MaxAge:          12 * time.Hour,
		})
	}
	return cors.New(cors.Config{
		AllowOrigins:  allowed,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	})
}

// limitBody caps the request body size using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
