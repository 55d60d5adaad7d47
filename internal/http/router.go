// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, session auth, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
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

	"github.com/tbourn/genai-studio/internal/config"
	"github.com/tbourn/genai-studio/internal/domain"
	"github.com/tbourn/genai-studio/internal/http/handlers"
	"github.com/tbourn/genai-studio/internal/http/middleware"
	"github.com/tbourn/genai-studio/internal/repo"
)

// UserFinder maps a session subject to the internal user id without
// creating one.
type UserFinder interface {
	Find(ctx context.Context, subject string) (uint, error)
}

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	DB         *gorm.DB
	Users      UserFinder
	Auth       middleware.Authenticator
	Generation handlers.GenerationService
	Contact    handlers.ContactService
	Billing    handlers.BillingService
}

// Relative token costs of the expensive routes; everything else costs 1.
var routeCosts = map[string]int{
	"/gemini/image": 3,
	"/video":        5,
	"/music":        2,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. CORS and security headers (so 401s stay readable by browsers)
//  8. Auth: attach identity, reject anonymous calls to private paths
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per subject/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key", "PayPal-Request-Id"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/metrics", "/health"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{apiPrefix(apiBase)},
		EnablePolicy:    true,
	}))

	// 8) Session auth with public allow-list
	r.Use(middleware.Auth(deps.Auth, middleware.AuthOptions{PublicPaths: cfg.Auth.PublicPaths}))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idempotencyLookup(deps.DB, deps.Users),
	))

	// 10) Token-bucket rate limiter per subject/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySubjectOrIP())
	for route, cost := range routeCosts {
		rl.WithCost(apiPrefix(apiBase)+route, cost)
	}
	r.Use(rl.Handler())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Generation, deps.Contact, deps.Billing)

	api := groupWithPrefix(r, apiBase)
	{
		// Generation
		api.POST("/code", h.Code)
		api.POST("/conversation", h.Conversation)
		api.POST("/gemini/image", h.Image)
		api.POST("/video", h.Video)
		api.GET("/video/user-videos", h.ListVideos)

		// Billing
		api.POST("/music", h.CreateOrder)
		api.POST("/music/capture", h.CaptureOrder)
		api.GET("/subscription", h.GetSubscription)
		api.POST("/subscription", h.CancelSubscription)

		// Contact
		api.POST("/email/contact", h.Contact)
	}
}

// idempotencyLookup reports whether the caller already used key for a
// payment order. Unknown users and expired keys are not replays.
func idempotencyLookup(db *gorm.DB, users UserFinder) middleware.IdempotencyLookup {
	return func(ctx context.Context, subject, key string, now time.Time) (bool, error) {
		if db == nil || users == nil {
			return false, nil
		}
		uid, err := users.Find(ctx, subject)
		if err != nil {
			return false, nil
		}
		_, err = repo.GetIdempotency(ctx, db, uid, domain.IdempotencyScopePaymentOrder, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// corsMiddleware returns the CORS handlers. With no allow-list every origin
// is accepted without credentials; otherwise listed origins are echoed and
// credentials (the session cookie) are allowed.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotent-Replay"}

	if len(cfg.AllowedOrigins) == 0 {
		return []gin.HandlerFunc{
			// ACAO: * even without an Origin header (simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	return []gin.HandlerFunc{cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     methods,
		AllowHeaders:     headers,
		ExposeHeaders:    expose,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})}
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

func apiPrefix(base string) string {
	if base == "/" {
		return ""
	}
	return base
}
