package risk

import (
	_ "embed"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/marketloop/coordinator/internal/schema"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	fieldMinConfidence    = "minConfidence"
	fieldRiskLimit        = "riskLimit"
	fieldTradingStartHour = "tradingStartHour"
	fieldTradingEndHour   = "tradingEndHour"
	fieldBlockSides       = "blockSides"
)

// SeedDefaults writes the embedded defaults.yaml into optimizer:active_params
// only if the hash does not already exist, per spec §4.5's bootstrap note.
func SeedDefaults(ctx context.Context, rdb *redis.Client) error {
	exists, err := rdb.Exists(ctx, schema.KeyRiskParams).Result()
	if err != nil {
		return fmt.Errorf("risk: check params exist: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var d schema.RiskParams
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		return fmt.Errorf("risk: parse defaults.yaml: %w", err)
	}

	fields := map[string]any{fieldMinConfidence: d.MinConfidence.String()}
	if d.RiskLimit != nil {
		fields[fieldRiskLimit] = d.RiskLimit.String()
	}
	if d.TradingStartHour != nil {
		fields[fieldTradingStartHour] = strconv.Itoa(*d.TradingStartHour)
	}
	if d.TradingEndHour != nil {
		fields[fieldTradingEndHour] = strconv.Itoa(*d.TradingEndHour)
	}
	if len(d.BlockSides) > 0 {
		fields[fieldBlockSides] = strings.Join(d.BlockSides, ",")
	}

	if err := rdb.HSet(ctx, schema.KeyRiskParams, fields).Err(); err != nil {
		return fmt.Errorf("risk: seed defaults: %w", err)
	}
	return nil
}

// Params is the parsed form of optimizer:active_params, re-read fresh on
// every evaluation (spec §4.5: "do not cache across entries").
type Params struct {
	MinConfidence    decimal.Decimal
	RiskLimit        *decimal.Decimal
	TradingStartHour *int
	TradingEndHour   *int
	BlockSides       map[string]bool
}

// LoadParams reads optimizer:active_params, applying spec §4.5's documented
// defaults for any absent field.
func LoadParams(ctx context.Context, rdb *redis.Client) (Params, error) {
	vals, err := rdb.HGetAll(ctx, schema.KeyRiskParams).Result()
	if err != nil {
		return Params{}, fmt.Errorf("risk: load params: %w", err)
	}

	p := Params{
		MinConfidence: decimal.NewFromFloat(0.6),
		BlockSides:    map[string]bool{},
	}
	if v, ok := vals[fieldMinConfidence]; ok && v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			p.MinConfidence = d
		}
	}
	if v, ok := vals[fieldRiskLimit]; ok && v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			p.RiskLimit = &d
		}
	}
	if v, ok := vals[fieldTradingStartHour]; ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			p.TradingStartHour = &i
		}
	}
	if v, ok := vals[fieldTradingEndHour]; ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			p.TradingEndHour = &i
		}
	}
	if v, ok := vals[fieldBlockSides]; ok && v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				p.BlockSides[s] = true
			}
		}
	}
	return p, nil
}
