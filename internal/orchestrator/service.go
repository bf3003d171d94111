// Package orchestrator drives one trading pipeline per admitted request:
// analyze → risk-evaluate → execute → settle, either by publishing commands
// across the stream runtime (pubsub mode) or by calling each peer's
// synchronous HTTP endpoint directly (http mode), tracking every in-flight
// request in a small mutex-guarded pending map.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/config"
	"github.com/marketloop/coordinator/internal/ledger"
	"github.com/marketloop/coordinator/internal/metrics"
	"github.com/marketloop/coordinator/internal/schema"
)

// ErrHalted is returned by StartRun when the ledger's halt invariant blocks
// admission of a new request.
var ErrHalted = errors.New("orchestrator: trading halted")

// Service is the coordinator's control plane: admission, pipeline dispatch
// and the in-memory pending map.
type Service struct {
	broker   *broker.Client
	ledger   *ledger.Ledger
	log      zerolog.Logger
	consumer string
	mode     config.CommMode
	pending  *PendingMap
	peers    *peerClient
	metrics  *metrics.Registry
}

// Options configures a new Service.
type Options struct {
	Mode        config.CommMode
	AnalystURL  string
	RiskURL     string
	ExecutorURL string
	Metrics     *metrics.Registry
}

func NewService(b *broker.Client, l *ledger.Ledger, log zerolog.Logger, opts Options) *Service {
	host, _ := os.Hostname()
	return &Service{
		broker:   b,
		ledger:   l,
		log:      log,
		consumer: host,
		mode:     opts.Mode,
		pending:  NewPendingMap(),
		peers:    newPeerClient(opts.AnalystURL, opts.RiskURL, opts.ExecutorURL),
		metrics:  opts.Metrics,
	}
}

// Run always starts the orchestrator.commands consumer that applies halt
// commands and, outside pure http mode, the pubsub-mode state machine's
// three further stream consumers (signals, risk responses, exec status). In
// pure http mode the pipeline runs in the goroutine StartRun launches, so
// only the halt consumer runs. Run returns once ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	subs := map[string]func(context.Context) error{
		schema.StreamCommands: func(ctx context.Context) error {
			return s.runConsumer(ctx, schema.StreamCommands, "halt", s.handleHaltCommand)
		},
	}
	if s.mode != config.ModeHTTP {
		subs[schema.StreamSignals] = func(ctx context.Context) error {
			return s.runConsumer(ctx, schema.StreamSignals, "signals", s.handleSignal)
		}
		subs[schema.StreamRiskResponses] = func(ctx context.Context) error {
			return s.runConsumer(ctx, schema.StreamRiskResponses, "risk-responses", s.handleRiskResponse)
		}
		subs[schema.StreamExecStatus] = func(ctx context.Context) error {
			return s.runConsumer(ctx, schema.StreamExecStatus, "exec-status", s.handleExecStatus)
		}
	}
	broker.RunPool(ctx, s.log, subs)
	return nil
}

// handleHaltCommand is the orchestrator's own read of orchestrator.commands
// (spec §9: "stop is an append of {type: halt} onto orchestrator.commands",
// there is no separate pub/sub side channel). The analyst consumes the same
// stream under a different consumer group for "analyze" commands, so both
// reads see every entry independently.
func (s *Service) handleHaltCommand(ctx context.Context, values map[string]interface{}) (string, error) {
	var cmd schema.Command
	if err := broker.Decode(values, &cmd); err != nil {
		return "", err
	}
	if cmd.Type != schema.CommandHalt {
		return cmd.RequestID, nil
	}
	if err := s.Halt(ctx); err != nil {
		return cmd.RequestID, err
	}
	s.log.Warn().Str("reason", cmd.Reason).Msg("trading halted via orchestrator.commands")
	return cmd.RequestID, nil
}

func (s *Service) runConsumer(ctx context.Context, stream, label string, handler broker.Handler) error {
	return broker.RunConsumer(ctx, s.broker, broker.ConsumerConfig{
		Stream:   stream,
		Group:    schema.GroupOrchestrator,
		Consumer: s.consumer + "-" + label,
		Log:      s.log,
		Handler:  handler,
	})
}

// StartRun admits one new trading pipeline for symbol, enforcing the halt
// invariant before any id is allocated or any message is sent (spec §4.3:
// "admission checks initDayIfNeeded+isHalted before allocating ids").
func (s *Service) StartRun(ctx context.Context, symbol string) (requestID, traceID string, err error) {
	halted, err := s.ledger.IsHalted(ctx)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: halt check: %w", err)
	}
	if halted {
		return "", "", ErrHalted
	}

	requestID = NewRequestID()
	traceID = NewTraceID()

	entry := PendingEntry{
		RequestID: requestID,
		TraceID:   traceID,
		Symbol:    symbol,
		State:     StateNew,
	}
	s.pending.Put(entry)

	switch s.mode {
	case config.ModeHTTP:
		go s.runHTTPPipeline(context.WithoutCancel(ctx), entry)
	case config.ModeHybrid:
		go s.runHybridPipeline(context.WithoutCancel(ctx), entry)
	default:
		if err := s.publishAnalyze(ctx, entry); err != nil {
			s.pending.Delete(requestID)
			return "", "", err
		}
	}

	return requestID, traceID, nil
}

func (s *Service) publishAnalyze(ctx context.Context, entry PendingEntry) error {
	cmd := schema.Command{
		Type:      schema.CommandAnalyze,
		Symbol:    entry.Symbol,
		RequestID: entry.RequestID,
		TraceID:   entry.TraceID,
		TS:        time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamCommands, cmd); err != nil {
		return fmt.Errorf("orchestrator: publish analyze: %w", err)
	}
	entry.State = StateWaitingSignal
	s.pending.Put(entry)
	return nil
}

// handleSignal consumes analysis.signals (pubsub mode): forward to risk
// evaluation.
func (s *Service) handleSignal(ctx context.Context, values map[string]interface{}) (string, error) {
	var sig schema.Signal
	if err := broker.Decode(values, &sig); err != nil {
		return "", err
	}

	entry, ok := s.pending.Get(sig.RequestID)
	if !ok {
		// No local pending entry (process restarted mid-pipeline, or
		// another instance originated it). Still valid to forward.
		entry = PendingEntry{RequestID: sig.RequestID, TraceID: sig.TraceID, Symbol: sig.Symbol}
	}
	entry.Side = sig.Side
	entry.Confidence = sig.Confidence
	entry.State = StateWaitingRisk
	s.pending.Put(entry)

	req := schema.RiskRequest{
		RequestID:  sig.RequestID,
		TraceID:    sig.TraceID,
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Confidence: sig.Confidence,
		TS:         time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamRiskRequests, req); err != nil {
		return sig.RequestID, err
	}
	return sig.RequestID, nil
}

// handleRiskResponse consumes risk.responses (pubsub mode): on rejection the
// pipeline ends (risk already emitted the risk_rejected notification); on
// approval, submit the order.
func (s *Service) handleRiskResponse(ctx context.Context, values map[string]interface{}) (string, error) {
	var resp schema.RiskResponse
	if err := broker.Decode(values, &resp); err != nil {
		return "", err
	}

	entry, ok := s.pending.Get(resp.RequestID)
	if !ok {
		entry = PendingEntry{RequestID: resp.RequestID, TraceID: resp.TraceID}
	}

	if s.metrics != nil {
		s.metrics.TrackRiskEvaluation(resp.OK, resp.Reason)
	}

	if !resp.OK {
		entry.State = StateRejected
		s.pending.Delete(entry.RequestID)
		return resp.RequestID, nil
	}

	orderID := NewOrderID()
	entry.OrderID = orderID
	entry.State = StateSubmitted
	s.pending.Put(entry)

	order := schema.Order{
		OrderID:   orderID,
		RequestID: resp.RequestID,
		TraceID:   resp.TraceID,
		Symbol:    entry.Symbol,
		Side:      entry.Side,
		Qty:       defaultOrderQty,
		TS:        time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamExecOrders, order); err != nil {
		return resp.RequestID, err
	}

	entry.State = StateWaitingFill
	s.pending.Put(entry)
	return resp.RequestID, nil
}

// handleExecStatus consumes exec.status (pubsub mode): settle the pipeline,
// crediting the fill's profit to today's ledger.
func (s *Service) handleExecStatus(ctx context.Context, values map[string]interface{}) (string, error) {
	var status schema.ExecStatus
	if err := broker.Decode(values, &status); err != nil {
		return "", err
	}

	entry, ok := s.pending.GetByOrderID(status.OrderID)
	if !ok {
		s.log.Debug().Str("orderId", status.OrderID).Msg("exec status for unknown pending entry, crediting ledger anyway")
	}

	if status.Status == schema.StatusFilled {
		pnl, err := s.ledger.Increment(ctx, status.Profit)
		if err != nil {
			return status.OrderID, fmt.Errorf("orchestrator: credit ledger: %w", err)
		}
		if err := s.maybeAutoHalt(ctx, pnl); err != nil {
			s.log.Error().Err(err).Str("orderId", status.OrderID).Msg("auto halt on daily target crossing failed")
		}
	}

	if ok {
		entry.State = StateSettled
		s.pending.Delete(entry.RequestID)
	}
	return status.OrderID, nil
}

// maybeAutoHalt implements the WAITING_FILL → SETTLED halt crossing (spec
// §4.3): on a filled order, once realized P&L first reaches dailyTargetPct,
// set halted, append {type: halt} onto orchestrator.commands and emit a
// daily_target_reached notification, in that order, so admission
// (StartRun) and any external observer agree by the time the notify event
// lands.
func (s *Service) maybeAutoHalt(ctx context.Context, pnl schema.PnLStatus) error {
	if pnl.Halted {
		return nil
	}
	if pnl.DailyTargetPct.IsZero() || pnl.Percent.LessThan(pnl.DailyTargetPct) {
		return nil
	}

	if err := s.ledger.SetHalted(ctx, true); err != nil {
		return fmt.Errorf("set halted: %w", err)
	}

	cmd := schema.Command{Type: schema.CommandHalt, Reason: "daily_target_reached", TS: time.Now().UTC()}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamCommands, cmd); err != nil {
		return fmt.Errorf("append halt command: %w", err)
	}

	event := schema.NotifyEvent{
		Type:     "daily_target_reached",
		Severity: schema.SeverityCritical,
		Message:  fmt.Sprintf("daily target %s%% reached (realized %s%%)", pnl.DailyTargetPct.String(), pnl.Percent.String()),
		Context: map[string]interface{}{
			"percent":        pnl.Percent.String(),
			"dailyTargetPct": pnl.DailyTargetPct.String(),
		},
		TS: time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamNotifyEvents, event); err != nil {
		return fmt.Errorf("append daily_target_reached notice: %w", err)
	}
	return nil
}
