// Package ledger implements the PnL Ledger: the day's running realized P&L,
// stored as a Redis hash and updated atomically so concurrent fills never
// clobber each other.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

const (
	fieldStartEquity    = "startEquity"
	fieldRealized       = "realized"
	fieldDailyTargetPct = "dailyTargetPct"
	fieldHalted         = "halted"
)

// Ledger wraps a redis.Client with the day-keyed PnL hash operations.
type Ledger struct {
	rdb            *redis.Client
	startEquity    decimal.Decimal
	dailyTargetPct decimal.Decimal
}

// New constructs a Ledger. startEquity and dailyTargetPct seed a trading
// day's hash the first time it is touched (initDayIfNeeded).
func New(rdb *redis.Client, startEquity, dailyTargetPct decimal.Decimal) *Ledger {
	return &Ledger{rdb: rdb, startEquity: startEquity, dailyTargetPct: dailyTargetPct}
}

func dayKey(date string) string { return schema.KeyPnLPrefix + date }

func today() string { return time.Now().UTC().Format("2006-01-02") }

// InitDayIfNeeded seeds today's hash with startEquity/realized=0/halted=false
// if it does not already exist, implementing the Ledger's lazy day rollover
// (a new calendar day simply begins from a fresh hash on first touch).
func (l *Ledger) InitDayIfNeeded(ctx context.Context) (string, error) {
	date := today()
	key := dayKey(date)

	exists, err := l.rdb.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("ledger: exists %s: %w", key, err)
	}
	if exists > 0 {
		return date, nil
	}

	err = l.rdb.HSet(ctx, key, map[string]any{
		fieldStartEquity:    l.startEquity.String(),
		fieldRealized:       "0",
		fieldDailyTargetPct: l.dailyTargetPct.String(),
		fieldHalted:         "0",
	}).Err()
	if err != nil {
		return "", fmt.Errorf("ledger: init day %s: %w", date, err)
	}
	return date, nil
}

// Increment atomically adds amount (may be negative) to today's realized
// P&L via HINCRBYFLOAT and returns the resulting status.
func (l *Ledger) Increment(ctx context.Context, amount decimal.Decimal) (schema.PnLStatus, error) {
	date, err := l.InitDayIfNeeded(ctx)
	if err != nil {
		return schema.PnLStatus{}, err
	}
	key := dayKey(date)

	f, _ := amount.Float64()
	if err := l.rdb.HIncrByFloat(ctx, key, fieldRealized, f).Err(); err != nil {
		return schema.PnLStatus{}, fmt.Errorf("ledger: increment: %w", err)
	}
	return l.Status(ctx)
}

// Status reads today's hash and recomputes percent on every call rather than
// trusting a cached value, so percent can never drift from realized/startEquity.
func (l *Ledger) Status(ctx context.Context) (schema.PnLStatus, error) {
	date, err := l.InitDayIfNeeded(ctx)
	if err != nil {
		return schema.PnLStatus{}, err
	}
	key := dayKey(date)

	vals, err := l.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return schema.PnLStatus{}, fmt.Errorf("ledger: status %s: %w", date, err)
	}

	startEquity := parseDecimal(vals[fieldStartEquity])
	realized := parseDecimal(vals[fieldRealized])
	dailyTargetPct := parseDecimal(vals[fieldDailyTargetPct])

	var percent decimal.Decimal
	if !startEquity.IsZero() {
		percent = realized.Div(startEquity).Mul(decimal.NewFromInt(100))
	}

	return schema.PnLStatus{
		Date:           date,
		StartEquity:    startEquity,
		Realized:       realized,
		Percent:        percent,
		DailyTargetPct: dailyTargetPct,
		Halted:         vals[fieldHalted] == "1",
	}, nil
}

// SetHalted flips today's halt flag. The orchestrator consults IsHalted on
// every admission check, so once halted no new pipeline may start until an
// admin explicitly unhalts.
func (l *Ledger) SetHalted(ctx context.Context, halted bool) error {
	date, err := l.InitDayIfNeeded(ctx)
	if err != nil {
		return err
	}
	v := "0"
	if halted {
		v = "1"
	}
	if err := l.rdb.HSet(ctx, dayKey(date), fieldHalted, v).Err(); err != nil {
		return fmt.Errorf("ledger: set halted: %w", err)
	}
	return nil
}

// IsHalted reports today's halt flag, auto-halting once percent has reached
// dailyTargetPct (spec's halt invariant) in addition to any explicit halt.
func (l *Ledger) IsHalted(ctx context.Context) (bool, error) {
	status, err := l.Status(ctx)
	if err != nil {
		return false, err
	}
	if status.Halted {
		return true, nil
	}
	if !status.DailyTargetPct.IsZero() && status.Percent.GreaterThanOrEqual(status.DailyTargetPct) {
		return true, nil
	}
	return false, nil
}

// ResetDay clears today's hash back to the seeded state, used by the admin
// "pnl reset" operation.
func (l *Ledger) ResetDay(ctx context.Context) (schema.PnLStatus, error) {
	date := today()
	if err := l.rdb.Del(ctx, dayKey(date)).Err(); err != nil {
		return schema.PnLStatus{}, fmt.Errorf("ledger: reset day: %w", err)
	}
	if _, err := l.InitDayIfNeeded(ctx); err != nil {
		return schema.PnLStatus{}, err
	}
	return l.Status(ctx)
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
