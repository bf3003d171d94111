package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the lifecycle state of an in-flight order.
type OrderStatus string

const (
	StatusFilled   OrderStatus = "filled"
	StatusRejected OrderStatus = "rejected"
	StatusFailed   OrderStatus = "failed"
	StatusPending  OrderStatus = "pending"
	StatusCanceled OrderStatus = "canceled"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Severity is the notify.events severity tier.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CommandType distinguishes entries on orchestrator.commands.
type CommandType string

const (
	CommandAnalyze CommandType = "analyze"
	CommandHalt    CommandType = "halt"
)

// Command is the payload of orchestrator.commands.
type Command struct {
	Type      CommandType `json:"type"`
	Symbol    string      `json:"symbol,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	TraceID   string      `json:"traceId,omitempty"`
	TS        time.Time   `json:"ts"`
}

// Signal is the payload of analysis.signals.
type Signal struct {
	RequestID  string          `json:"requestId"`
	TraceID    string          `json:"traceId,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Confidence decimal.Decimal `json:"confidence"`
	TS         time.Time       `json:"ts"`
}

// RiskRequest is the payload of risk.requests.
type RiskRequest struct {
	RequestID  string          `json:"requestId"`
	TraceID    string          `json:"traceId,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Confidence decimal.Decimal `json:"confidence"`
	TS         time.Time       `json:"ts"`
}

// RiskResponse is the payload of risk.responses.
type RiskResponse struct {
	RequestID string    `json:"requestId"`
	TraceID   string    `json:"traceId,omitempty"`
	OK        bool      `json:"ok"`
	Reason    string    `json:"reason,omitempty"`
	TS        time.Time `json:"ts"`
}

// Order is the payload of exec.orders.
type Order struct {
	OrderID   string          `json:"orderId"`
	RequestID string          `json:"requestId,omitempty"`
	TraceID   string          `json:"traceId,omitempty"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Qty       decimal.Decimal `json:"qty"`
	TS        time.Time       `json:"ts"`
}

// ExecStatus is the payload of exec.status.
type ExecStatus struct {
	OrderID string          `json:"orderId"`
	TraceID string          `json:"traceId,omitempty"`
	Symbol  string          `json:"symbol,omitempty"`
	Side    Side            `json:"side,omitempty"`
	Qty     decimal.Decimal `json:"qty,omitempty"`
	Status  OrderStatus     `json:"status"`
	Profit  decimal.Decimal `json:"profit,omitempty"`
	Fee     decimal.Decimal `json:"fee,omitempty"`
	Price   decimal.Decimal `json:"price,omitempty"`
	TS      time.Time       `json:"ts"`
}

// NotifyEvent is the payload of notify.events.
type NotifyEvent struct {
	Type      string                 `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	TraceID   string                 `json:"traceId,omitempty"`
	TS        time.Time              `json:"ts"`
}

// DLQEntry is the payload appended to a "<stream>.dlq" companion stream.
type DLQEntry struct {
	OriginalStream string          `json:"originalStream"`
	Group          string          `json:"group"`
	ID             string          `json:"id"`
	Payload        map[string]any  `json:"payload"`
	Error          string          `json:"error"`
	TS             time.Time       `json:"ts"`
}

// PnLStatus is the decoded form of a pnl:<date> hash.
type PnLStatus struct {
	Date            string          `json:"date"`
	StartEquity     decimal.Decimal `json:"startEquity"`
	Realized        decimal.Decimal `json:"realized"`
	Percent         decimal.Decimal `json:"percent"`
	DailyTargetPct  decimal.Decimal `json:"dailyTargetPct"`
	Halted          bool            `json:"halted"`
}

// RiskParams is the decoded form of the optimizer:active_params hash.
type RiskParams struct {
	MinConfidence    decimal.Decimal `json:"minConfidence" yaml:"minConfidence"`
	RiskLimit        *decimal.Decimal `json:"riskLimit,omitempty" yaml:"riskLimit,omitempty"`
	TradingStartHour *int            `json:"tradingStartHour,omitempty" yaml:"tradingStartHour,omitempty"`
	TradingEndHour   *int            `json:"tradingEndHour,omitempty" yaml:"tradingEndHour,omitempty"`
	BlockSides       []string        `json:"blockSides,omitempty" yaml:"blockSides,omitempty"`
}
