// Package executor implements the Trade Executor: it accepts orders,
// forwards them to a configured exchange adapter, persists order state and
// reconciles stale in-flight orders.
package executor

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

// ErrNotImplemented is returned by adapter variants whose real network
// integration is explicitly out of scope (spec §1 excludes "exchange
// adapter implementations"); they still satisfy the interface.
var ErrNotImplemented = errors.New("executor: exchange adapter not implemented")

// Fill is the normalized result of placing an order (spec §9 "Adapter
// polymorphism").
type Fill struct {
	Filled   bool
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Notional decimal.Decimal
	Raw      map[string]any
}

// Adapter is the single capability every exchange integration exposes.
type Adapter interface {
	Name() string
	PlaceOrder(ctx context.Context, o schema.Order) (Fill, error)
}

// PaperAdapter always fills at a configured fixed price/fee, used for
// deterministic local testing and demos.
type PaperAdapter struct {
	Price decimal.Decimal
	Fee   decimal.Decimal
}

func (a PaperAdapter) Name() string { return "paper" }

func (a PaperAdapter) PlaceOrder(ctx context.Context, o schema.Order) (Fill, error) {
	return Fill{
		Filled:   true,
		Price:    a.Price,
		Fee:      a.Fee,
		Notional: a.Price.Mul(o.Qty),
	}, nil
}

// BinanceAdapter is a thin, honestly incomplete REST shell: real exchange
// connectivity is out of scope (spec §1), so PlaceOrder returns
// ErrNotImplemented rather than pretending to talk to the exchange.
type BinanceAdapter struct {
	BaseURL string
	APIKey  string
}

func (a BinanceAdapter) Name() string { return "binance" }

func (a BinanceAdapter) PlaceOrder(ctx context.Context, o schema.Order) (Fill, error) {
	return Fill{}, ErrNotImplemented
}

// CoinbaseAdapter mirrors BinanceAdapter's shape for the other exchange
// named in spec §6's EXCHANGE enum.
type CoinbaseAdapter struct {
	BaseURL string
	APIKey  string
}

func (a CoinbaseAdapter) Name() string { return "coinbase" }

func (a CoinbaseAdapter) PlaceOrder(ctx context.Context, o schema.Order) (Fill, error) {
	return Fill{}, ErrNotImplemented
}
