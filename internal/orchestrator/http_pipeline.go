package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// defaultOrderQty is the fixed order size this exercise trades, since
// position sizing is out of scope (spec's execution model is fixed-profit,
// not notional-driven).
var defaultOrderQty = decimal.NewFromInt(1)

const peerTimeout = 5 * time.Second

// peerClient calls the analyst/risk/executor internal HTTP endpoints used
// by http and hybrid pipeline modes (spec §4.3/§5).
type peerClient struct {
	httpClient  *http.Client
	analystURL  string
	riskURL     string
	executorURL string
}

func newPeerClient(analystURL, riskURL, executorURL string) *peerClient {
	return &peerClient{
		httpClient:  &http.Client{Timeout: peerTimeout},
		analystURL:  analystURL,
		riskURL:     riskURL,
		executorURL: executorURL,
	}
}

func (p *peerClient) postJSON(ctx context.Context, url string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("orchestrator: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, peerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("orchestrator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("orchestrator: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("orchestrator: %s returned %d: %s", url, resp.StatusCode, string(detail))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *peerClient) analyze(ctx context.Context, entry PendingEntry) (schema.Signal, error) {
	var sig schema.Signal
	err := p.postJSON(ctx, p.analystURL+"/analyze", map[string]any{
		"symbol":    entry.Symbol,
		"requestId": entry.RequestID,
		"traceId":   entry.TraceID,
	}, &sig)
	return sig, err
}

func (p *peerClient) evaluateRisk(ctx context.Context, sig schema.Signal) (schema.RiskResponse, error) {
	var resp schema.RiskResponse
	err := p.postJSON(ctx, p.riskURL+"/risk/evaluate", map[string]any{
		"symbol":     sig.Symbol,
		"side":       sig.Side,
		"confidence": sig.Confidence,
		"requestId":  sig.RequestID,
		"traceId":    sig.TraceID,
	}, &resp)
	return resp, err
}

func (p *peerClient) execute(ctx context.Context, order schema.Order) (schema.ExecStatus, error) {
	var status schema.ExecStatus
	err := p.postJSON(ctx, p.executorURL+"/execute", map[string]any{
		"orderId":   order.OrderID,
		"symbol":    order.Symbol,
		"side":      order.Side,
		"qty":       order.Qty.String(),
		"requestId": order.RequestID,
		"traceId":   order.TraceID,
	}, &status)
	return status, err
}

// runHTTPPipeline drives one request through analyze → risk → execute
// synchronously, calling each peer directly instead of publishing to the
// stream runtime. It runs detached from the originating HTTP request's
// context (StartRun returns as soon as admission succeeds).
func (s *Service) runHTTPPipeline(ctx context.Context, entry PendingEntry) {
	if err := s.driveSyncPipeline(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("requestId", entry.RequestID).Msg("http pipeline failed")
	}
}

// runHybridPipeline tries the synchronous http pipeline first and falls
// back to publishing an analyze command on the stream runtime when a peer
// call fails outright (e.g. connection refused), so a single down peer
// degrades to pubsub mode instead of dropping the request.
func (s *Service) runHybridPipeline(ctx context.Context, entry PendingEntry) {
	if err := s.driveSyncPipeline(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("requestId", entry.RequestID).Msg("hybrid pipeline falling back to pubsub")
		if err := s.publishAnalyze(ctx, entry); err != nil {
			s.log.Error().Err(err).Str("requestId", entry.RequestID).Msg("hybrid pipeline fallback publish failed")
		}
	}
}

func (s *Service) driveSyncPipeline(ctx context.Context, entry PendingEntry) error {
	entry.State = StateWaitingSignal
	s.pending.Put(entry)

	sig, err := s.peers.analyze(ctx, entry)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	entry.Side = sig.Side
	entry.Confidence = sig.Confidence
	entry.State = StateWaitingRisk
	s.pending.Put(entry)

	resp, err := s.peers.evaluateRisk(ctx, sig)
	if err != nil {
		return fmt.Errorf("risk evaluate: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TrackRiskEvaluation(resp.OK, resp.Reason)
	}
	if !resp.OK {
		entry.State = StateRejected
		s.pending.Delete(entry.RequestID)
		return s.publishRejectionNotice(ctx, entry, resp.Reason)
	}

	orderID := NewOrderID()
	entry.OrderID = orderID
	entry.State = StateSubmitted
	s.pending.Put(entry)

	order := schema.Order{
		OrderID:   orderID,
		RequestID: entry.RequestID,
		TraceID:   entry.TraceID,
		Symbol:    entry.Symbol,
		Side:      entry.Side,
		Qty:       defaultOrderQty,
		TS:        time.Now().UTC(),
	}
	entry.State = StateWaitingFill
	s.pending.Put(entry)

	status, err := s.peers.execute(ctx, order)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if status.Status == schema.StatusFilled {
		pnl, err := s.ledger.Increment(ctx, status.Profit)
		if err != nil {
			return fmt.Errorf("credit ledger: %w", err)
		}
		if err := s.maybeAutoHalt(ctx, pnl); err != nil {
			s.log.Error().Err(err).Str("requestId", entry.RequestID).Msg("auto halt on daily target crossing failed")
		}
	}

	entry.State = StateSettled
	s.pending.Delete(entry.RequestID)
	return nil
}

// publishRejectionNotice mirrors the pubsub-mode risk service's
// risk_rejected emission for http-mode pipelines, since risk's own HTTP
// handler (unlike its stream consumer) has no stream context to publish
// into.
func (s *Service) publishRejectionNotice(ctx context.Context, entry PendingEntry, reason string) error {
	event := schema.NotifyEvent{
		Type:     "risk_rejected",
		Severity: schema.SeverityWarning,
		Message:  reason,
		Context: map[string]interface{}{
			"requestId": entry.RequestID,
			"symbol":    entry.Symbol,
			"reason":    reason,
		},
		RequestID: entry.RequestID,
		TraceID:   entry.TraceID,
		TS:        time.Now().UTC(),
	}
	_, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamNotifyEvents, event)
	return err
}
