package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrader/internal/config"
	"papertrader/internal/ledger"
	"papertrader/internal/quotes"
	"papertrader/internal/repository"
	"papertrader/internal/server"
	"papertrader/internal/trading"
	"papertrader/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting paper trader")

	fees, err := ledger.ParseFeeModel(cfg.FeeModel)
	if err != nil {
		log.Fatal().Err(err).Str("fee_model", cfg.FeeModel).Msg("Failed to parse fee model")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := repository.Open(ctx, cfg.StoreDSN, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Str("dsn", cfg.StoreDSN).Msg("Failed to open store")
	}
	defer store.Close()

	service, err := trading.NewService(ctx, trading.Config{
		Store:       store,
		Quotes:      quotes.NewClient(cfg.QuoteAPIURL, log),
		Fees:        fees,
		InitialCash: cfg.InitialCash,
		QuoteMaxAge: cfg.QuoteMaxAge,
		Log:         log,
	})
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to reconstruct ledger")
	}

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Service: service,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
