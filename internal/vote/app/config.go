package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Required: issuer claim for access tokens

	DatabaseFile string // Path to the SQLite database file (default: ./ballot.db)
	PepperFile   string // Path to the credential-hash pepper file (default: ./pepper)
	SigningSeed  string // Optional: base64url 32-byte Ed25519 seed; ephemeral key when empty

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token / session lifetime (default: 24h)

	ChallengeTTL      time.Duration // OTP validity window (default: 5m)
	ChallengeAttempts int           // Guesses per challenge (default: 5)
	ResendInterval    time.Duration // Minimum gap between code deliveries (default: 60s)

	LockoutThreshold int           // Failed credential checks before lockout (default: 5)
	LockoutWindow    time.Duration // Lockout duration (default: 15m)

	// LedgerMode selects where votes are recorded: "embedded" keeps them
	// in the local database, "remote" posts to an external tally service.
	LedgerMode    string
	LedgerURL     string        // Required when LedgerMode is remote
	LedgerTimeout time.Duration // Per-call timeout for the remote ledger (default: 10s)

	NotifyURL     string        // Optional: SMS gateway endpoint; logs-only when empty
	NotifyTimeout time.Duration // Per-dispatch timeout (default: 5s)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-row sweep interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:       getEnvOrDefault("BALLOT_ISSUER", "ballotcore"),
		DatabaseFile: getEnvOrDefault("BALLOT_DATABASE_FILE", "ballot.db"),
		PepperFile:   getEnvOrDefault("BALLOT_PEPPER_FILE", "pepper"),
		SigningSeed:  os.Getenv("BALLOT_SIGNING_SEED"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		AccessTokenTTL:  getEnvDurationOrDefault("BALLOT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDurationOrDefault("BALLOT_REFRESH_TTL", 24*time.Hour),

		ChallengeTTL:      getEnvDurationOrDefault("BALLOT_CHALLENGE_TTL", 5*time.Minute),
		ChallengeAttempts: getEnvIntOrDefault("BALLOT_CHALLENGE_ATTEMPTS", 5),
		ResendInterval:    getEnvDurationOrDefault("BALLOT_RESEND_INTERVAL", 60*time.Second),

		LockoutThreshold: getEnvIntOrDefault("BALLOT_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:    getEnvDurationOrDefault("BALLOT_LOCKOUT_WINDOW", 15*time.Minute),

		LedgerMode:    getEnvOrDefault("BALLOT_LEDGER_MODE", "embedded"),
		LedgerURL:     os.Getenv("BALLOT_LEDGER_URL"),
		LedgerTimeout: getEnvDurationOrDefault("BALLOT_LEDGER_TIMEOUT", 10*time.Second),

		NotifyURL:     os.Getenv("BALLOT_NOTIFY_URL"),
		NotifyTimeout: getEnvDurationOrDefault("BALLOT_NOTIFY_TIMEOUT", 5*time.Second),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
