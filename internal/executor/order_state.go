package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketloop/coordinator/internal/schema"
)

const (
	fieldOrderID       = "orderId"
	fieldSymbol        = "symbol"
	fieldSide          = "side"
	fieldQty           = "qty"
	fieldReceivedTS    = "received_ts"
	fieldLastStatus    = "last_status"
	fieldStaleNotified = "stale_notified"
)

func orderKey(orderID string) string { return schema.KeyOrderPrefix + orderID }

// OrderState is the decoded form of exec:orders:<orderId>.
type OrderState struct {
	OrderID       string
	Symbol        string
	Side          schema.Side
	Qty           string
	ReceivedTS    time.Time
	LastStatus    *schema.ExecStatus
	StaleNotified bool
}

// loadOrderState returns (nil, nil) if the key does not exist.
func loadOrderState(ctx context.Context, rdb *redis.Client, orderID string) (*OrderState, error) {
	vals, err := rdb.HGetAll(ctx, orderKey(orderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("executor: load order state %s: %w", orderID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}

	st := &OrderState{
		OrderID: vals[fieldOrderID],
		Symbol:  vals[fieldSymbol],
		Side:    schema.Side(vals[fieldSide]),
		Qty:     vals[fieldQty],
	}
	if ts, err := time.Parse(time.RFC3339Nano, vals[fieldReceivedTS]); err == nil {
		st.ReceivedTS = ts
	}
	st.StaleNotified = vals[fieldStaleNotified] == "1"
	if raw := vals[fieldLastStatus]; raw != "" {
		var status schema.ExecStatus
		if err := json.Unmarshal([]byte(raw), &status); err == nil {
			st.LastStatus = &status
		}
	}
	return st, nil
}

func initOrderState(ctx context.Context, rdb *redis.Client, o schema.Order) error {
	err := rdb.HSet(ctx, orderKey(o.OrderID), map[string]any{
		fieldOrderID:       o.OrderID,
		fieldSymbol:        o.Symbol,
		fieldSide:          string(o.Side),
		fieldQty:           o.Qty.String(),
		fieldReceivedTS:    time.Now().UTC().Format(time.RFC3339Nano),
		fieldStaleNotified: "0",
	}).Err()
	if err != nil {
		return fmt.Errorf("executor: init order state %s: %w", o.OrderID, err)
	}
	return nil
}

func persistLastStatus(ctx context.Context, rdb *redis.Client, orderID string, status schema.ExecStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("executor: marshal last_status: %w", err)
	}
	if err := rdb.HSet(ctx, orderKey(orderID), fieldLastStatus, string(b)).Err(); err != nil {
		return fmt.Errorf("executor: persist last_status %s: %w", orderID, err)
	}
	return nil
}

func markStaleNotified(ctx context.Context, rdb *redis.Client, orderID string) error {
	return rdb.HSet(ctx, orderKey(orderID), fieldStaleNotified, "1").Err()
}

func scanOrderKeys(ctx context.Context, rdb *redis.Client) ([]string, error) {
	var keys []string
	iter := rdb.Scan(ctx, 0, schema.KeyOrderPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("executor: scan order keys: %w", err)
	}
	return keys, nil
}
