// Package housekeeping runs non-critical, purely observational background
// jobs (the pending pre-alert in the orchestrator process, the ack gauge
// sweep in the notifier process). None of them bear on correctness:
// the PnL ledger's day rollover stays lazy and time-based (initDayIfNeeded),
// untouched by anything scheduled here.
package housekeeping

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/broker"
)

// Scheduler wraps a robfig/cron/v3 instance with whichever of the two jobs
// the owning process registers.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// RegisterPendingPreAlert logs the pending-entry count for every known
// (stream, group) pair once a minute, as a pre-alerting signal ahead of
// whatever external alerting watches /metrics.
func (s *Scheduler) RegisterPendingPreAlert(ctx context.Context, c *broker.Client, pairs [][2]string) error {
	_, err := s.cron.AddFunc("@every 1m", func() {
		for _, pair := range pairs {
			n, err := c.PendingSummary(ctx, pair[0], pair[1])
			if err != nil {
				continue
			}
			if n > 0 {
				s.log.Info().Str("stream", pair[0]).Str("group", pair[1]).Int64("pending", n).Msg("pending backlog")
			}
		}
	})
	return err
}

// RegisterAckGaugeSweep counts the notify:ack:* keys that still exist once a
// minute, refreshing a process-local acked-count gauge. Redis TTL already
// expires the keys themselves; this is cache bookkeeping, not a correctness
// requirement.
func (s *Scheduler) RegisterAckGaugeSweep(ctx context.Context, c *broker.Client, onCount func(int64)) error {
	_, err := s.cron.AddFunc("@every 1m", func() {
		keys, err := c.Raw().Keys(ctx, "notify:ack:*").Result()
		if err != nil {
			return
		}
		onCount(int64(len(keys)))
	})
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}
