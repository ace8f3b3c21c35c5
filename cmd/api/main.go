package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/shopera/billing-api/internal/config"
	"github.com/shopera/billing-api/internal/domain/billing"
	"github.com/shopera/billing-api/internal/domain/boost"
	"github.com/shopera/billing-api/internal/domain/featured"
	"github.com/shopera/billing-api/internal/domain/ledger"
	"github.com/shopera/billing-api/internal/middleware"
	"github.com/shopera/billing-api/internal/pkg/database"
	"github.com/shopera/billing-api/internal/pkg/gateway"
	"github.com/shopera/billing-api/internal/pkg/jwt"
	"github.com/shopera/billing-api/internal/pkg/logger"
	"github.com/shopera/billing-api/internal/pkg/notifier"
	"github.com/shopera/billing-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Billing API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, 15*time.Minute)

	// ---------- Gateways ----------
	gateways := gateway.NewFactory()
	gateways.Register(gateway.NewEpayProvider(cfg.GatewaySecret))

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	boostRepo := boost.NewRepository(db)
	featuredRepo := featured.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo)

	var dedup boost.Deduplicator = boost.NoopDeduplicator{}
	if redisClient != nil {
		dedup = boost.NewRedisDeduplicator(redisClient, cfg.ClickDedupWindow)
	}
	boostService := boost.NewService(boostRepo, dedup, cfg.ChargeMaxRetries)
	featuredService := featured.NewService(featuredRepo)

	billingService := billing.NewService(ledgerService, boostService, featuredService, gateways, notifier.NewLogNotifier())
	billingHandler := billing.NewHandler(billingService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	})

	authMW := middleware.Auth(jwtService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", billingHandler.PublicRoutes())
		r.Mount("/billing", billingHandler.Routes(authMW, middleware.RequireProvider()))
		r.Mount("/admin", billingHandler.AdminRoutes(authMW, middleware.RequireAdmin()))
	})

	// ---------- Server ----------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
