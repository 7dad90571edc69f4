package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/rtp-api/internal/config"
	"github.com/ksred/rtp-api/internal/database"
	"github.com/ksred/rtp-api/internal/indexer"
	"github.com/ksred/rtp-api/internal/info"
	"github.com/ksred/rtp-api/internal/observability"
	"github.com/ksred/rtp-api/internal/stream"
	"github.com/ksred/rtp-api/pkg/middleware"
)

// init configures the application logging based on environment settings
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main runs the event indexer together with its checkpoint service.
// The indexer consumes sealed blocks from NATS and mirrors ledger
// events into the operational store; the checkpoint service exposes the
// cursor and bank filter set over HTTP.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	// Checkpoint service
	infoService := info.NewService(info.NewDatabase(db), observability.NewLogger("info", cfg.Env, cfg.Debug))
	infoHandlers := info.NewGinHandlers(infoService)

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	authed := router.Group("/")
	authed.Use(middleware.BearerAuth(cfg.IndexerSecret))
	{
		authed.GET("/info", infoHandlers.GetInfoHandler())
		authed.DELETE("/info", infoHandlers.ResetInfoHandler())
		authed.POST("/info/last_block_height", infoHandlers.SetLastBlockHeightHandler())
		authed.POST("/info/init_block_height", infoHandlers.InitBlockHeightHandler())
		authed.POST("/info/new_bank", infoHandlers.NewBankHandler())
	}

	srv := &http.Server{
		Addr:    ":" + cfg.InfoServicePort,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Block stream subscription
	nc, js, err := stream.Connect(cfg.NATSURL, zlog.Logger)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()
	if err := stream.EnsureBlockStream(runCtx, js); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to ensure block stream")
	}

	subscriber := stream.NewSubscriber(js, cfg.IndexerDurable, observability.NewLogger("stream", cfg.Env, cfg.Debug))
	blocks, err := subscriber.Subscribe(runCtx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to subscribe to block stream")
	}

	// Indexer loop
	infoClient := indexer.NewInfoClient(cfg.InfoAPIURL, cfg.IndexerSecret)
	ix := indexer.New(
		indexer.NewDatabase(db),
		infoClient,
		fetchTip(cfg.ServerAPIURL),
		cfg.FactoryAccountID,
		metrics,
		observability.NewLogger("indexer", cfg.Env, cfg.Debug),
	)

	indexerDone := make(chan error, 1)
	go func() {
		indexerDone <- ix.Run(runCtx, blocks)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		zlog.Info().Msg("Shutting down indexer...")
	case err := <-indexerDone:
		if err != nil && err != context.Canceled {
			zlog.Error().Err(err).Msg("Indexer stopped with error")
		}
	}
	runCancel()
	subscriber.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Indexer exiting")
}

// fetchTip reads the current block height from the ledger server's tip
// endpoint. Used only when no checkpoint exists yet; a zero return
// starts indexing from the beginning of the stream.
func fetchTip(serverURL string) indexer.TipFunc {
	return func() uint64 {
		resp, err := http.Get(serverURL + "/api/v1/factory/tip")
		if err != nil {
			zlog.Warn().Err(err).Msg("failed to fetch ledger tip")
			return 0
		}
		defer resp.Body.Close()

		var envelope struct {
			Success bool `json:"success"`
			Data    struct {
				BlockHeight uint64 `json:"block_height"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || !envelope.Success {
			zlog.Warn().Err(err).Msg("failed to decode ledger tip")
			return 0
		}
		return envelope.Data.BlockHeight
	}
}
