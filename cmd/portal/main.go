package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/cache"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/config"
	"github.com/stemsi/exstem-portal/internal/database"
	"github.com/stemsi/exstem-portal/internal/gate"
	"github.com/stemsi/exstem-portal/internal/handler"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/logger"
	"github.com/stemsi/exstem-portal/internal/metrics"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/router"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.PortalPort).
		Str("mode", cfg.GinMode).
		Str("api", cfg.APIBaseURL).
		Msg("Starting ExStem Portal")

	// ─── Initialize Validator and Metrics ──────────────────────────────
	validator.Setup()
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
	}

	// ─── Identity and List Cache ───────────────────────────────────────
	store, err := identity.OpenStore(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open identity store")
	}
	idc := identity.NewContext(store)

	var listCache cache.Cache = cache.NewMemory()
	if rdb != nil {
		listCache = cache.NewRedis(rdb)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	apiClient := client.New(client.Config{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.APITimeout,
		RatePerSecond: cfg.APIRatePerSec,
		Cache:         listCache,
		CacheTTL:      cfg.CacheTTL,
	}, idc, log)

	authService := service.NewAuthService(apiClient, idc, log)
	catalogService := service.NewCatalogService(apiClient)
	sessionService := service.NewExamSessionService(apiClient, idc, cfg.AutosaveEvery, log)

	// A rejected token ends every open exam; the page is sent to login.
	apiClient.SetSessionExpiredHook(func() {
		log.Warn().Msg("Backend rejected the cached token, closing exam sessions")
		go sessionService.Shutdown()
	})

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, catalogService),
		Admin:         handler.NewAdminHandler(catalogService),
		WS:            handler.NewWSHandler(sessionService, idc, log, cfg.AllowedOrigins),
		System:        handler.NewSystemHandler(rdb, log),
	}

	gatekeeper := middleware.NewGatekeeper(gate.New(nil), idc, log)
	loginLimiter := middleware.NewRateLimiter(cfg.LoginPerMinute)
	go loginLimiter.Run(ctx.Done())

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(gatekeeper, loginLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.PortalPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.PortalPort).Msg("Portal listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop session timers; an in-flight auto-save is abandoned.
	sessionService.Shutdown()
	cancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
