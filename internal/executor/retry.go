package executor

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

// placeOrderWithRetry shares the broker package's retry policy shape so
// flaky adapter calls get an exponential backoff like stream appends,
// bounded here at 3 attempts (stream appends allow 6).
func placeOrderWithRetry(ctx context.Context, a Adapter, o schema.Order) (Fill, error) {
	policy := backoff.NewExponentialBackOff()
	return backoff.Retry(ctx, func() (Fill, error) {
		return a.PlaceOrder(ctx, o)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(3))
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
