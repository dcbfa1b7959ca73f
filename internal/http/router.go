// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected through App
//   - Payment and account responses are never cached
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

	"github.com/tbourn/recipe-chat-backend/docs"
	"github.com/tbourn/recipe-chat-backend/internal/auth"
	"github.com/tbourn/recipe-chat-backend/internal/config"
	"github.com/tbourn/recipe-chat-backend/internal/domain"
	"github.com/tbourn/recipe-chat-backend/internal/http/handlers"
	"github.com/tbourn/recipe-chat-backend/internal/http/middleware"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// App carries the process-wide dependencies the routes are built from.
type App struct {
	DB       *gorm.DB
	LLM      llm.Completer
	Gateways *payments.Registry
	// Guard deduplicates webhook deliveries across instances; nil means
	// payments.NopGuard.
	Guard payments.EventGuard
	// Tokens verifies bearer tokens and issues them at login; nil leaves
	// only the trusted X-User-ID header (when enabled).
	Tokens *auth.Tokens
}

// sessionRepoShim adapts the repository free functions to the
// services.SessionRepo interface expected by the SessionService.
type sessionRepoShim struct{}

// CreateSession proxies repo.CreateSession.
func (sessionRepoShim) CreateSession(ctx context.Context, db *gorm.DB, customerID, title string) (*domain.ChatSession, error) {
	return repo.CreateSession(ctx, db, customerID, title)
}

// GetSession proxies repo.GetSession.
func (sessionRepoShim) GetSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) (*domain.ChatSession, error) {
	return repo.GetSession(ctx, db, sessionID, customerID)
}

// CountSessions proxies repo.CountSessions (pagination support).
func (sessionRepoShim) CountSessions(ctx context.Context, db *gorm.DB, customerID string) (int64, error) {
	return repo.CountSessions(ctx, db, customerID)
}

// ListSessionsPage proxies repo.ListSessionsPage (pagination support).
func (sessionRepoShim) ListSessionsPage(ctx context.Context, db *gorm.DB, customerID string, offset, limit int) ([]domain.ChatSession, error) {
	return repo.ListSessionsPage(ctx, db, customerID, offset, limit)
}

// SearchSessions proxies repo.SearchSessions.
func (sessionRepoShim) SearchSessions(ctx context.Context, db *gorm.DB, customerID, term string, limit int) ([]domain.ChatSession, error) {
	return repo.SearchSessions(ctx, db, customerID, term, limit)
}

// RenameSession proxies repo.RenameSession.
func (sessionRepoShim) RenameSession(ctx context.Context, db *gorm.DB, sessionID, customerID, title string) error {
	return repo.RenameSession(ctx, db, sessionID, customerID, title)
}

// DeleteSession proxies repo.DeleteSession.
func (sessionRepoShim) DeleteSession(ctx context.Context, db *gorm.DB, sessionID, customerID string) error {
	return repo.DeleteSession(ctx, db, sessionID, customerID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), authentication,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs (redacting when cfg.LogRedact)
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Authenticate: resolve the customer (bearer JWT or trusted header)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per customer/IP, webhooks exempt, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, app App, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	prefix := apiBase
	if prefix == "/" {
		prefix = ""
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging, with PII scrubbing unless disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit and response compression
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/metrics"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Customer identity
	var tokens middleware.TokenParser
	if app.Tokens != nil {
		tokens = app.Tokens
	}
	r.Use(middleware.Authenticate(middleware.AuthOptions{
		Tokens:          tokens,
		TrustUserHeader: cfg.Auth.TrustUserHeader,
	}))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, customerID, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, app.DB, customerID, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per customer/IP. Gateways retry webhooks
	// on their own schedule and must never be throttled.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		WithSkip(middleware.SkipPrefixes(prefix+"/webhooks/", "/health", "/metrics"))
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match",
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
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
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{prefix + "/payments", prefix + "/me", prefix + "/auth"},
		EnablePolicy:    true,
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

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(buildDeps(app, cfg))

	api := groupWithPrefix(r, apiBase)
	{
		// Public: accounts, gateway notifications and browser returns
		api.POST("/auth/signup", h.Signup)
		api.POST("/auth/login", h.Login)
		api.POST("/webhooks/:gateway", h.Webhook)
		api.GET("/payments/callback/:gateway", h.PaymentCallback)
		api.POST("/payments/callback/:gateway", h.PaymentCallback)
	}

	p := api.Group("", middleware.RequireAuth())
	{
		// Account
		p.GET("/me", h.Me)
		p.PUT("/me/profile", h.UpdateProfile)

		// Chat
		p.POST("/chat", h.PostChat)

		// Sessions
		p.POST("/sessions", h.CreateSession)
		p.GET("/sessions", h.ListSessions)
		p.GET("/sessions/search", h.SearchSessions)
		p.GET("/sessions/:id", h.GetSession)
		p.PUT("/sessions/:id/title", h.UpdateSessionTitle)
		p.DELETE("/sessions/:id", h.DeleteSession)

		// Messages
		p.GET("/sessions/:id/messages", h.ListSessionMessages)
		p.POST("/sessions/:id/messages", h.PostSessionMessage)

		// Recipes
		p.POST("/recipes", h.GenerateRecipe)
		p.GET("/recipes", h.ListRecipes)
		p.GET("/recipes/:id", h.GetRecipe)

		// Feedback
		p.POST("/messages/:id/feedback", h.LeaveFeedback)

		// Payments
		p.GET("/payments/config", h.PaymentConfig)
		p.POST("/payments", h.CreatePayment)
		p.GET("/payments/history", h.PaymentHistory)
		p.GET("/payments/:id", h.PaymentStatus)
	}
}

// buildDeps performs dependency injection: services ← repo/db/llm/gateways.
func buildDeps(app App, cfg config.Config) handlers.Deps {
	ledger := &services.Ledger{DB: app.DB}
	guard := app.Guard
	if guard == nil {
		guard = payments.NopGuard{}
	}

	sessSvc := services.NewSessionService(app.DB, sessionRepoShim{})
	if cfg.TitleMaxLen > 0 {
		sessSvc.TitleMaxLen = cfg.TitleMaxLen
	}
	if cfg.SessionPageMax > 0 {
		sessSvc.PageMax = cfg.SessionPageMax
	}

	return handlers.Deps{
		Customers: &services.CustomerService{
			DB:           app.DB,
			Tokens:       app.Tokens,
			WelcomeGrant: cfg.Credits.WelcomeGrant,
		},
		Sessions: sessSvc,
		Chat: &services.ChatOrchestrator{
			DB:              app.DB,
			Ledger:          ledger,
			LLM:             app.LLM,
			MaxMessageRunes: cfg.MaxMessageLen,
			HistoryTurns:    cfg.Gemini.HistoryTurns,
			IdempotencyTTL:  cfg.IdempotencyTTL,
		},
		Recipes: &services.RecipeService{
			DB:      app.DB,
			Ledger:  ledger,
			LLM:     app.LLM,
			PageMax: cfg.SessionPageMax,
		},
		Feedback: &services.FeedbackService{DB: app.DB},
		Payments: &services.PaymentService{
			DB:       app.DB,
			Ledger:   ledger,
			Gateways: app.Gateways,
			Guard:    guard,
			Packs:    cfg.Credits.Packs,
			BaseURL:  cfg.BaseURL,
		},
		MaxMessageRunes: cfg.MaxMessageLen,
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
