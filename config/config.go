package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	SessionTTL       time.Duration
	RenewWindow      time.Duration
	EvictionGrace    time.Duration
	RevokedRetention time.Duration

	BillingBaseURL string
	BillingAPIKey  string
	BillingProduct string
	OracleTimeout  time.Duration

	PremiumCacheTTL  time.Duration
	SyncRetries      int
	SyncRetryDelay   time.Duration
	SweepInterval    time.Duration
	SweepPause       time.Duration

	ResendAPIKey string
	MailFrom     string
	AppBaseURL   string
}

// Load reads the environment (after an optional .env file) into Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		SessionTTL:       parseDur(getenv("SESSION_TTL", "168h")),
		RenewWindow:      parseDur(getenv("SESSION_RENEW_WINDOW", "24h")),
		EvictionGrace:    parseDur(getenv("SESSION_EVICTION_GRACE", "5m")),
		RevokedRetention: parseDur(getenv("SESSION_REVOKED_RETENTION", "360h")),

		BillingBaseURL: getenv("BILLING_BASE_URL", "https://api.revenuecat.com/v1"),
		BillingAPIKey:  os.Getenv("BILLING_API_KEY"),
		BillingProduct: getenv("BILLING_PRODUCT", "premium"),
		OracleTimeout:  parseDur(getenv("BILLING_TIMEOUT", "5s")),

		PremiumCacheTTL: parseDur(getenv("PREMIUM_CACHE_TTL", "5m")),
		SyncRetries:     atoi(getenv("PREMIUM_SYNC_RETRIES", "3")),
		SyncRetryDelay:  parseDur(getenv("PREMIUM_SYNC_RETRY_DELAY", "2s")),
		SweepInterval:   parseDur(getenv("PREMIUM_SWEEP_INTERVAL", "24h")),
		SweepPause:      parseDur(getenv("PREMIUM_SWEEP_PAUSE", "100ms")),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		AppBaseURL:   os.Getenv("APP_BASE_URL"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}
