package executor

import (
	"context"
	"strings"
	"time"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Reconcile periodically sweeps exec:orders:* for orders whose last_status
// is absent or non-terminal and whose received_ts predates staleAfter,
// emitting one exec_order_stale notification per order (spec §4.6).
// Grounded on the teacher's health-poller ticker shape.
func (s *Service) Reconcile(ctx context.Context) {
	interval := s.reconcileEv
	if interval == 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaleOrders(ctx)
		}
	}
}

func (s *Service) sweepStaleOrders(ctx context.Context) {
	keys, err := scanOrderKeys(ctx, s.broker.Raw())
	if err != nil {
		s.log.Warn().Err(err).Msg("reconcile scan failed")
		return
	}

	staleAfter := s.staleAfter
	if staleAfter == 0 {
		staleAfter = 120 * time.Second
	}

	for _, key := range keys {
		orderID := strings.TrimPrefix(key, schema.KeyOrderPrefix)
		state, err := loadOrderState(ctx, s.broker.Raw(), orderID)
		if err != nil || state == nil {
			continue
		}
		if state.LastStatus != nil && state.LastStatus.Status.Terminal() {
			continue
		}
		if state.StaleNotified {
			continue
		}
		if time.Since(state.ReceivedTS) < staleAfter {
			continue
		}

		event := schema.NotifyEvent{
			Type:     "exec_order_stale",
			Severity: schema.SeverityWarning,
			Message:  "order has not reached a terminal status",
			Context: map[string]interface{}{
				"orderId": orderID,
				"symbol":  state.Symbol,
			},
			TS: time.Now().UTC(),
		}
		if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamNotifyEvents, event); err != nil {
			s.log.Warn().Err(err).Str("orderId", orderID).Msg("failed to publish stale-order notification")
			continue
		}
		if err := markStaleNotified(ctx, s.broker.Raw(), orderID); err != nil {
			s.log.Warn().Err(err).Str("orderId", orderID).Msg("failed to persist stale_notified")
		}
	}
}
