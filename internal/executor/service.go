package executor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/marketloop/coordinator/internal/broker"
	"github.com/marketloop/coordinator/internal/schema"
)

// Service consumes exec.orders, forwards to the configured Adapter and
// emits exec.status, plus a background reconciliation loop over stale
// in-flight orders.
type Service struct {
	broker      *broker.Client
	log         zerolog.Logger
	consumer    string
	adapter     Adapter
	limiter     *rate.Limiter
	profit      decimal.Decimal
	staleAfter  time.Duration
	reconcileEv time.Duration
}

// Options configures a new Service.
type Options struct {
	Adapter            Adapter
	ProfitPerTrade     string
	StaleAfter         time.Duration
	ReconcileInterval  time.Duration
	RateLimitPerSecond float64
}

func NewService(b *broker.Client, log zerolog.Logger, opts Options) *Service {
	host, _ := os.Hostname()
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 10
	}
	return &Service{
		broker:      b,
		log:         log,
		consumer:    host,
		adapter:     opts.Adapter,
		limiter:     rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), 1),
		profit:      parseAmount(opts.ProfitPerTrade),
		staleAfter:  opts.StaleAfter,
		reconcileEv: opts.ReconcileInterval,
	}
}

func (s *Service) Run(ctx context.Context) error {
	broker.RunPool(ctx, s.log, map[string]func(context.Context) error{
		schema.StreamExecOrders: func(ctx context.Context) error {
			return broker.RunConsumer(ctx, s.broker, broker.ConsumerConfig{
				Stream:   schema.StreamExecOrders,
				Group:    schema.GroupExec,
				Consumer: s.consumer,
				Log:      s.log,
				Handler:  s.handle,
			})
		},
		"reconcile": func(ctx context.Context) error {
			s.Reconcile(ctx)
			return nil
		},
	})
	return nil
}

func (s *Service) handle(ctx context.Context, values map[string]interface{}) (string, error) {
	var order schema.Order
	if err := broker.Decode(values, &order); err != nil {
		return "", err
	}

	existing, err := loadOrderState(ctx, s.broker.Raw(), order.OrderID)
	if err != nil {
		return order.OrderID, err
	}
	if existing != nil && existing.LastStatus != nil && existing.LastStatus.Status.Terminal() {
		s.log.Debug().Str("orderId", order.OrderID).Msg("duplicate order skipped, already terminal")
		return order.OrderID, nil
	}

	if err := initOrderState(ctx, s.broker.Raw(), order); err != nil {
		return order.OrderID, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return order.OrderID, err
	}

	fill, err := placeOrderWithRetry(ctx, s.adapter, order)
	if err != nil {
		return order.OrderID, err
	}

	profit := s.profit.Sub(fill.Fee)
	status := schema.ExecStatus{
		OrderID: order.OrderID,
		TraceID: order.TraceID,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Qty:     order.Qty,
		Status:  schema.StatusFilled,
		Profit:  profit,
		Fee:     fill.Fee,
		Price:   fill.Price,
		TS:      time.Now().UTC(),
	}

	if err := persistLastStatus(ctx, s.broker.Raw(), order.OrderID, status); err != nil {
		return order.OrderID, err
	}

	if _, err := broker.AppendWithRetry(ctx, s.broker, schema.StreamExecStatus, status); err != nil {
		return order.OrderID, err
	}
	return order.OrderID, nil
}
