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
	"github.com/marketloop/coordinator/internal/httpserver"
	"github.com/marketloop/coordinator/internal/housekeeping"
	"github.com/marketloop/coordinator/internal/ledger"
	"github.com/marketloop/coordinator/internal/logging"
	"github.com/marketloop/coordinator/internal/metrics"
	"github.com/marketloop/coordinator/internal/orchestrator"
)

// pendingPairs lists every (stream, group) the housekeeping pre-alert and
// the metrics pending gauge should watch.
var pendingPairs = [][2]string{
	{"orchestrator.commands", "analyst"},
	{"analysis.signals", "orchestrator"},
	{"risk.requests", "risk"},
	{"risk.responses", "orchestrator"},
	{"exec.orders", "exec"},
	{"exec.status", "orchestrator"},
	{"notify.events", "notify"},
}

func main() {
	cfg := config.Load()
	log := logging.New("orchestrator")

	bc, err := broker.New(cfg.BrokerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}
	defer bc.Close()

	startEquity, err := decimal.NewFromString(cfg.StartEquity)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid START_EQUITY")
	}
	dailyTargetPct, err := decimal.NewFromString(cfg.DailyTargetPct)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DAILY_TARGET_PCT")
	}
	led := ledger.New(bc.Raw(), startEquity, dailyTargetPct)

	adminToken, err := cfg.ResolveAdminToken()
	if err != nil {
		log.Warn().Err(err).Msg("admin token resolution failed")
	}

	reg := metrics.NewRegistry()

	svc := orchestrator.NewService(bc, led, log, orchestrator.Options{
		Mode:        cfg.CommMode,
		AnalystURL:  cfg.AnalystURL,
		RiskURL:     cfg.RiskURL,
		ExecutorURL: cfg.ExecutorURL,
		Metrics:     reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := led.InitDayIfNeeded(ctx); err != nil {
		log.Warn().Err(err).Msg("ledger day seed failed")
	}

	go func() {
		if err := svc.Run(ctx); err != nil {
			log.Error().Err(err).Msg("orchestrator state machine stopped")
		}
	}()

	go broker.MonitorPending(ctx, bc, pendingPairs, 15*time.Second, log, func(snap broker.PendingSnapshot) {
		reg.TrackPending(snap.Stream, snap.Group, snap.Pending)
	})

	scheduler := housekeeping.New(log)
	if err := scheduler.RegisterPendingPreAlert(ctx, bc, pendingPairs); err != nil {
		log.Warn().Err(err).Msg("pending pre-alert registration failed")
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	health := httpserver.NewHealth(func() error { return bc.Ping(context.Background()) })
	r := orchestrator.NewRouter(svc, log, health, reg, adminToken)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", string(cfg.CommMode)).Msg("orchestrator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("orchestrator server failed")
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
