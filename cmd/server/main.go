package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/rtp-api/internal/auth"
	"github.com/ksred/rtp-api/internal/config"
	"github.com/ksred/rtp-api/internal/database"
	"github.com/ksred/rtp-api/internal/factory"
	"github.com/ksred/rtp-api/internal/ledger"
	"github.com/ksred/rtp-api/internal/matching"
	"github.com/ksred/rtp-api/internal/observability"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/stream"
	"github.com/ksred/rtp-api/internal/types"
	"github.com/ksred/rtp-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the settlement API server with graceful
// shutdown support. It hosts the ledger runtime, the factory, and the
// matching engine, and publishes sealed blocks for the indexer.
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Initialize the ledger runtime and the factory root account
	rt := runtime.New(runtime.Config{
		BlockInterval: cfg.BlockInterval,
		Logger:        observability.NewLogger("runtime", cfg.Env, cfg.Debug),
	})

	ledgerDB := ledger.NewDatabase(db)
	ledgerLogger := observability.NewLogger("ledger", cfg.Env, cfg.Debug)
	newLedgerContract := func(account string) runtime.Contract {
		return ledger.New(account, ledgerDB, ledgerLogger)
	}

	factoryService, err := factory.NewService(
		rt, db, cfg.FactoryAccountID, newLedgerContract,
		observability.NewLogger("factory", cfg.Env, cfg.Debug), metrics,
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize factory")
	}
	rt.Genesis(cfg.FactoryAccountID, cfg.FactoryBalance, factoryService.Contract())
	factoryHandlers := factory.NewGinHandlers(factoryService)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Block subscriptions must exist before the runtime starts sealing
	matchingBlocks := rt.Blocks()
	publishBlocks := rt.Blocks()
	go rt.Start(runCtx)

	// Publish sealed blocks for the out-of-process indexer
	nc, js, err := stream.Connect(cfg.NATSURL, zlog.Logger)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()
	if err := stream.EnsureBlockStream(runCtx, js); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to ensure block stream")
	}
	publisher := stream.NewPublisher(js, publishBlocks, observability.NewLogger("stream", cfg.Env, cfg.Debug))
	go func() {
		if err := publisher.Run(runCtx); err != nil && err != context.Canceled {
			zlog.Error().Err(err).Msg("block publisher stopped")
		}
	}()

	// Start the matching engine on the in-process event feed
	engine := matching.NewEngine(
		factoryService, cfg.MatchingWindow, cfg.PaymentWindow,
		observability.NewLogger("matching", cfg.Env, cfg.Debug),
	)
	go engine.Run(runCtx, stream.Events(runCtx, matchingBlocks))

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if cfg.Env != "production" {
		// Demo credentials for the two-bank scenario
		authService.RegisterAPICredentials("deutsche-api-key", "deutsche-api-secret", types.BankID("Deutsche Bank"))
		authService.RegisterAPICredentials("sparkasse-api-key", "sparkasse-api-secret", types.BankID("Sparkasse"))
	}

	// Initialize router
	router := gin.Default()
	router.Use(middleware.RateLimit())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	setupRoutes(router, cfg, authHandlers, factoryHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")
	runCancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Bank routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	factoryHandlers *factory.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Bank routes
		banks := v1.Group("/banks")
		banks.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			banks.POST("/:bank_id/trades", factoryHandlers.PerformTradeHandler())
			banks.GET("/:bank_id/trades/:trade_id", factoryHandlers.GetTradeHandler())
		}

		// Registry views
		factoryGroup := v1.Group("/factory")
		{
			factoryGroup.GET("/banks", factoryHandlers.GetBankIDsHandler())
			factoryGroup.GET("/bank_id", factoryHandlers.GetBankIDHandler())
			factoryGroup.GET("/partnership_id", factoryHandlers.GetPartnershipIDHandler())
			factoryGroup.GET("/storage_cost", factoryHandlers.StorageCostHandler())
			factoryGroup.GET("/tip", factoryHandlers.TipHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.JWTSecret))
		{
			internal.POST("/banks", factoryHandlers.CreateBankHandler())
			internal.DELETE("/banks/:bank_id", factoryHandlers.RemoveBankHandler())
			internal.POST("/contract", factoryHandlers.StoreContractHandler())
			internal.DELETE("/storage", factoryHandlers.ClearStorageHandler())
			internal.POST("/payments/confirm", factoryHandlers.ConfirmPaymentHandler())
		}
	}
}
