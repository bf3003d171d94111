package analyst

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Service consumes orchestrator.commands and emits analysis.signals for
// every analyze command, ignoring other command types (spec §4.4).
type Service struct {
	broker   *broker.Client
	log      zerolog.Logger
	consumer string
}

func NewService(b *broker.Client, log zerolog.Logger) *Service {
	host, _ := os.Hostname()
	return &Service{broker: b, log: log, consumer: host}
}

func (s *Service) Run(ctx context.Context) error {
	broker.RunPool(ctx, s.log, map[string]func(context.Context) error{
		schema.StreamCommands: func(ctx context.Context) error {
			return broker.RunConsumer(ctx, s.broker, broker.ConsumerConfig{
				Stream:   schema.StreamCommands,
				Group:    schema.GroupAnalyst,
				Consumer: s.consumer,
				Log:      s.log,
				Handler:  s.handle,
			})
		},
	})
	return nil
}

func (s *Service) handle(ctx context.Context, values map[string]interface{}) (string, error) {
	var cmd schema.Command
	if err := broker.Decode(values, &cmd); err != nil {
		return "", err
	}
	if cmd.Type != schema.CommandAnalyze {
		return cmd.RequestID, nil
	}

	side, confidence := Compute(cmd.Symbol)

	signal := schema.Signal{
		RequestID:  cmd.RequestID,
		TraceID:    cmd.TraceID,
		Symbol:     cmd.Symbol,
		Side:       side,
		Confidence: confidence,
		TS:         time.Now().UTC(),
	}
	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamSignals, signal); err != nil {
		return cmd.RequestID, err
	}
	return cmd.RequestID, nil
}
