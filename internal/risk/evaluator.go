package risk

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/marketloop/coordinator/internal/schema"
)

// Decision is the pure result of Evaluate.
type Decision struct {
	OK     bool
	Reason string
}

var one = decimal.NewFromInt(1)
var zero = decimal.Zero

// Evaluate is a pure function of (side, confidence, params, hourUTC),
// applying the fixed precedence outside_window > blocked_side > risk_limit >
// low_confidence > ok (spec §4.5).
func Evaluate(side schema.Side, confidence decimal.Decimal, p Params, hourUTC int) Decision {
	if p.TradingStartHour != nil && p.TradingEndHour != nil && outsideWindow(hourUTC, *p.TradingStartHour, *p.TradingEndHour) {
		return Decision{OK: false, Reason: "outside_window"}
	}

	if p.BlockSides[strings.ToLower(string(side))] {
		return Decision{OK: false, Reason: "blocked_side"}
	}

	threshold := p.MinConfidence
	riskLimitReason := false
	if p.RiskLimit != nil {
		rl := clamp01(*p.RiskLimit)
		complement := one.Sub(rl)
		if complement.GreaterThanOrEqual(threshold) {
			threshold = complement
			riskLimitReason = true
		}
	}

	if confidence.LessThan(threshold) {
		if riskLimitReason {
			return Decision{OK: false, Reason: "risk_limit"}
		}
		return Decision{OK: false, Reason: "low_confidence"}
	}

	return Decision{OK: true}
}

// outsideWindow reports whether hour lies outside [start,end), supporting
// wrap-around windows where start > end (e.g. 22..6).
func outsideWindow(hour, start, end int) bool {
	if start <= end {
		return hour < start || hour >= end
	}
	return hour >= end && hour < start
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(zero) {
		return zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
