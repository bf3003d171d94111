package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/config"
	"github.com/marketloop/coordinator/internal/executor"
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/logging"
	"github.com/marketloop/coordinator/internal/metrics"
)

func buildAdapter(cfg *config.Config) executor.Adapter {
	switch cfg.Exchange {
	case config.ExchangeBinance:
		return executor.BinanceAdapter{BaseURL: os.Getenv("BINANCE_BASE_URL"), APIKey: os.Getenv("BINANCE_API_KEY")}
	case config.ExchangeCoinbase:
		return executor.CoinbaseAdapter{BaseURL: os.Getenv("COINBASE_BASE_URL"), APIKey: os.Getenv("COINBASE_API_KEY")}
	default:
		price, _ := decimal.NewFromString(cfg.PaperPrice)
		fee, _ := decimal.NewFromString(cfg.PaperFee)
		return executor.PaperAdapter{Price: price, Fee: fee}
	}
}

func main() {
	cfg := config.Load()
	log := logging.New("executor")

	bc, err := broker.New(cfg.BrokerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}
	defer bc.Close()

	reg := metrics.NewRegistry()
	svc := executor.NewService(bc, log, executor.Options{
		Adapter:            buildAdapter(cfg),
		ProfitPerTrade:     cfg.ProfitPerTrade,
		StaleAfter:         cfg.ExecStaleAfter,
		ReconcileInterval:  cfg.ExecReconcileEvery,
		RateLimitPerSecond: 10,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Error().Err(err).Msg("executor consumer stopped")
		}
	}()

	health := httpserver.NewHealth(func() error { return bc.Ping(context.Background()) })
	r := httpserver.NewRouter(log, reg)
	r.Get("/health", health.Handler)
	r.Get("/metrics", reg.Handler())
	r.Post("/execute", svc.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("exchange", string(cfg.Exchange)).Msg("executor listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("executor server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
