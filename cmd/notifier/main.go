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
	"github.com/marketloop/coordinator/internal/housekeeping"
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/logging"
	"github.com/marketloop/coordinator/internal/metrics"
	"github.com/marketloop/coordinator/internal/notifier"
)

func main() {
	cfg := config.Load()
	log := logging.New("notifier")

	bc, err := broker.New(cfg.BrokerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}
	defer bc.Close()

	sinks := []notifier.Sink{notifier.LogSink{Log: log}}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notifier.WebhookSink{URL: cfg.WebhookURL})
		log.Info().Str("url", cfg.WebhookURL).Msg("registered webhook sink")
	}

	acks := notifier.NewAckStore(bc.Raw(), cfg.AckTTL)
	svc := notifier.NewService(bc, log, sinks, acks)

	adminToken, err := cfg.ResolveAdminToken()
	if err != nil {
		log.Warn().Err(err).Msg("admin token resolution failed")
	}

	reg := metrics.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Error().Err(err).Msg("notifier consumer stopped")
		}
	}()

	scheduler := housekeeping.New(log)
	if err := scheduler.RegisterAckGaugeSweep(ctx, bc, func(n int64) {
		reg.GaugeSet("coordinator_notify_acked_total", nil, float64(n))
	}); err != nil {
		log.Warn().Err(err).Msg("ack gauge sweep registration failed")
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	health := httpserver.NewHealth(func() error { return bc.Ping(context.Background()) })
	r := notifier.NewRouter(svc, log, health, reg, adminToken)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("notifier listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("notifier server failed")
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
