// Package analyst implements the Market Analyst: it consumes analyze
// commands and emits a buy/sell signal with a confidence score.
package analyst

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/marketloop/coordinator/internal/schema"
)

const seriesLen = 20

// syntheticSeries produces a deterministic, symbol-seeded synthetic price
// series. There is no real market data source in scope (spec's Non-goals
// exclude real exchange connectivity); this stands in for a feed while
// giving the component actual numbers to reason about.
func syntheticSeries(symbol string) []float64 {
	seed := hashSeed(symbol)
	series := make([]float64, seriesLen)
	price := 100.0
	for i := range series {
		// Linear congruential step, deterministic per seed.
		seed = seed*6364136223846793005 + 1442695040888963407
		step := (float64(seed>>33%2001) - 1000) / 1000 // in [-1, 1]
		price += step
		series[i] = price
	}
	return series
}

func hashSeed(s string) uint64 {
	var h uint64 = 1469598103934665603
	for _, c := range s {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// Compute derives a Side and confidence from the last-tick z-score of a
// synthetic, symbol-seeded price series: positive momentum maps to buy,
// negative to sell, and the magnitude of the z-score squashes into a
// [0,1] confidence via a logistic curve.
func Compute(symbol string) (schema.Side, decimal.Decimal) {
	series := syntheticSeries(symbol)
	mean, std := stat.MeanStdDev(series, nil)
	if std == 0 {
		return schema.SideBuy, decimal.NewFromFloat(0.5)
	}

	last := series[len(series)-1]
	z := (last - mean) / std

	side := schema.SideBuy
	if z < 0 {
		side = schema.SideSell
	}

	confidence := 1 / (1 + math.Exp(-math.Abs(z)))
	return side, decimal.NewFromFloat(round4(confidence))
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
