package risk

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Service consumes risk.requests and emits risk.responses, dispatching a
// notify.events entry of type risk_rejected whenever a request is denied.
type Service struct {
	broker   *broker.Client
	log      zerolog.Logger
	consumer string
}

func NewService(b *broker.Client, log zerolog.Logger) *Service {
	host, _ := os.Hostname()
	return &Service{broker: b, log: log, consumer: host}
}

// Run blocks, consuming risk.requests under group "risk" until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	broker.RunPool(ctx, s.log, map[string]func(context.Context) error{
		schema.StreamRiskRequests: func(ctx context.Context) error {
			return broker.RunConsumer(ctx, s.broker, broker.ConsumerConfig{
				Stream:   schema.StreamRiskRequests,
				Group:    schema.GroupRisk,
				Consumer: s.consumer,
				Log:      s.log,
				Handler:  s.handle,
			})
		},
	})
	return nil
}

func (s *Service) handle(ctx context.Context, values map[string]interface{}) (string, error) {
	var req schema.RiskRequest
	if err := broker.Decode(values, &req); err != nil {
		return "", err
	}

	params, err := LoadParams(ctx, s.broker.Raw())
	if err != nil {
		return req.RequestID, err
	}

	decision := Evaluate(req.Side, req.Confidence, params, time.Now().UTC().Hour())

	resp := schema.RiskResponse{
		RequestID: req.RequestID,
		TraceID:   req.TraceID,
		OK:        decision.OK,
		Reason:    decision.Reason,
		TS:        time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamRiskResponses, resp); err != nil {
		return req.RequestID, err
	}

	if !decision.OK {
		event := schema.NotifyEvent{
			Type:     "risk_rejected",
			Severity: schema.SeverityWarning,
			Message:  decision.Reason,
			Context: map[string]interface{}{
				"requestId": req.RequestID,
				"symbol":    req.Symbol,
				"side":      req.Side,
				"reason":    decision.Reason,
			},
			RequestID: req.RequestID,
			TraceID:   req.TraceID,
			TS:        time.Now().UTC(),
		}
		if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamNotifyEvents, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish risk_rejected notification")
		}
	}

	return req.RequestID, nil
}
