package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/config"
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/logging"
	"github.com/marketloop/coordinator/internal/metrics"
	"github.com/marketloop/coordinator/internal/risk"
)

func main() {
	cfg := config.Load()
	log := logging.New("risk")

	bc, err := broker.New(cfg.BrokerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}
	defer bc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := risk.SeedDefaults(ctx, bc.Raw()); err != nil {
		log.Warn().Err(err).Msg("risk param bootstrap failed")
	}

	reg := metrics.NewRegistry()
	svc := risk.NewService(bc, log)

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Error().Err(err).Msg("risk consumer stopped")
		}
	}()

	health := httpserver.NewHealth(func() error { return bc.Ping(context.Background()) })
	r := httpserver.NewRouter(log, reg)
	r.Get("/health", health.Handler)
	r.Get("/metrics", reg.Handler())
	r.Post("/risk/evaluate", risk.Handler(bc.Raw()))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("risk listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("risk server failed")
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
