// Command server runs the recipe chat HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/recipe-chat-backend/internal/auth"
	"github.com/tbourn/recipe-chat-backend/internal/config"
	httpapi "github.com/tbourn/recipe-chat-backend/internal/http"
	"github.com/tbourn/recipe-chat-backend/internal/llm"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
	"github.com/tbourn/recipe-chat-backend/internal/payments"
	"github.com/tbourn/recipe-chat-backend/internal/repo"
	"github.com/tbourn/recipe-chat-backend/internal/sysutil"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeInterval   = 10 * time.Minute
)

// @title                      Recipe Chat API
// @version                    1.0
// @description                Credit-metered AI cooking assistant: chat, recipes, sessions and credit purchases.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	version := sysutil.Version()
	sysutil.SetupLogging(nil, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, version)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownOTel = func(context.Context) error { return nil }
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Msg("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokens(secret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}

	guard, closeGuard := eventGuard(ctx, cfg)
	defer closeGuard()

	app := httpapi.App{
		DB:       db,
		LLM:      llm.New(cfg.Gemini),
		Gateways: gateways(cfg),
		Guard:    guard,
		Tokens:   tokens,
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, app, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("db", cfg.DB.Driver).Msg("starting api server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// gateways registers every payment gateway whose credentials are present.
func gateways(cfg config.Config) *payments.Registry {
	var gs []payments.Gateway

	if s, err := payments.NewStripe(cfg.Stripe, cfg.BaseURL); err == nil {
		gs = append(gs, s)
	} else {
		logGatewayErr(err)
	}

	api := cfg.BaseURL + cfg.APIBasePath
	if p, err := payments.NewPhonePe(cfg.PhonePe, api+"/payments/callback/phonepe?txn={txn}", api+"/webhooks/phonepe", nil); err == nil {
		gs = append(gs, p)
	} else {
		logGatewayErr(err)
	}

	reg := payments.NewRegistry(gs...)
	log.Info().Strs("gateways", reg.Available()).Msg("payment gateways")
	return reg
}

func logGatewayErr(err error) {
	if errors.Is(err, payments.ErrNotConfigured) {
		log.Info().Err(err).Msg("gateway disabled")
		return
	}
	log.Error().Err(err).Msg("gateway init")
}

// eventGuard dedupes webhook deliveries in Redis when REDIS_URL is set.
func eventGuard(ctx context.Context, cfg config.Config) (payments.EventGuard, func()) {
	if cfg.Redis.URL == "" {
		return payments.NopGuard{}, func() {}
	}
	g, closeFn, err := payments.NewRedisGuard(ctx, cfg.Redis.URL, cfg.Redis.EventTTL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, webhook dedupe falls back to the transaction state")
		return payments.NopGuard{}, func() {}
	}
	return g, func() {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close redis")
		}
	}
}

// purgeIdempotency drops expired Idempotency-Key records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, db, now)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency keys")
			}
		}
	}
}
