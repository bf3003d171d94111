// Package config loads coordinator configuration from the environment,
// in the gateway's Load()-returns-*Config shape.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CommMode selects how the orchestrator originates a pipeline.
type CommMode string

const (
	ModePubSub CommMode = "pubsub"
	ModeHTTP   CommMode = "http"
	ModeHybrid CommMode = "hybrid"
)

// Exchange selects the executor's adapter implementation.
type Exchange string

const (
	ExchangePaper    Exchange = "paper"
	ExchangeBinance  Exchange = "binance"
	ExchangeCoinbase Exchange = "coinbase"
)

// Config holds every coordinator-wide environment knob listed in spec §6.
type Config struct {
	BrokerURL string
	KVURL     string
	Port      string

	CommMode CommMode

	StartEquity    string
	DailyTargetPct string

	StreamIdempTTL     time.Duration
	StreamMaxFailures  int
	AckTTL             time.Duration
	ExecStaleAfter     time.Duration
	ExecReconcileEvery time.Duration

	AdminToken     string
	AdminTokenFile string

	Exchange Exchange

	ProfitPerTrade string
	PaperPrice     string
	PaperFee       string

	WebhookURL string

	// HTTP-mode pipeline peer addresses, consulted when CommMode is ModeHTTP
	// or ModeHybrid (hybrid calls them first and falls back to pubsub when
	// the synchronous pipeline fails).
	AnalystURL  string
	RiskURL     string
	ExecutorURL string
}

// Load reads configuration from the environment and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BrokerURL: getEnv("BROKER_URL", "redis://localhost:6379/0"),
		KVURL:     getEnv("KV_URL", getEnv("BROKER_URL", "redis://localhost:6379/0")),
		Port:      getEnv("PORT", "8080"),

		CommMode: CommMode(getEnv("COMM_MODE", string(ModePubSub))),

		StartEquity:    getEnv("START_EQUITY", "1000"),
		DailyTargetPct: getEnv("DAILY_TARGET_PCT", "1"),

		StreamIdempTTL:     time.Duration(getEnvInt("STREAM_IDEMP_TTL_SECONDS", 86400)) * time.Second,
		StreamMaxFailures:  getEnvInt("STREAM_MAX_FAILURES", 5),
		AckTTL:             time.Duration(getEnvInt("ACK_TTL_SECONDS", 604800)) * time.Second,
		ExecStaleAfter:     time.Duration(getEnvInt("EXEC_ORDER_STALE_AFTER_SECONDS", 120)) * time.Second,
		ExecReconcileEvery: time.Duration(getEnvInt("EXEC_RECONCILE_INTERVAL_MS", 30000)) * time.Millisecond,

		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		AdminTokenFile: getEnv("ADMIN_TOKEN_FILE", ""),

		Exchange: Exchange(getEnv("EXCHANGE", string(ExchangePaper))),

		ProfitPerTrade: getEnv("PROFIT_PER_TRADE", "10"),
		PaperPrice:     getEnv("EXEC_PAPER_PRICE", "100"),
		PaperFee:       getEnv("EXEC_PAPER_FEE", "0.1"),

		WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		AnalystURL:  getEnv("ANALYST_URL", "http://localhost:8081"),
		RiskURL:     getEnv("RISK_URL", "http://localhost:8082"),
		ExecutorURL: getEnv("EXECUTOR_URL", "http://localhost:8083"),
	}
}

// ResolveAdminToken returns the shared secret, reading ADMIN_TOKEN_FILE once
// if ADMIN_TOKEN itself is unset.
func (c *Config) ResolveAdminToken() (string, error) {
	if c.AdminToken != "" {
		return c.AdminToken, nil
	}
	if c.AdminTokenFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.AdminTokenFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
