package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	PostgresDSN string
	LogLevel    string

	LedgerRPCURL    string
	AdminKeySeedHex string

	Asset         string
	AssetDecimals int
	TotalBudget   uint64

	ClaimantsCSV string
	CohortsCSV   string

	ClaimantsPerVault int
	TreeShape         string

	MaxBatchBytes     int
	MaxBatchOps       int
	SubmitMaxAttempts int
	SubmitBaseDelayMS int
	SubmitMaxDelayMS  int
	ConfirmTimeoutSec int
	ConfirmPollMS     int
	DeployConcurrency int
}

func FromEnv() Config {
	return Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		LogLevel:          envDefault("LOG_LEVEL", "info"),
		LedgerRPCURL:      os.Getenv("LEDGER_RPC_URL"),
		AdminKeySeedHex:   os.Getenv("ADMIN_KEY_SEED_HEX"),
		Asset:             os.Getenv("ASSET"),
		AssetDecimals:     envIntDefault("ASSET_DECIMALS", 9),
		TotalBudget:       envUint64Default("TOTAL_BUDGET", 0),
		ClaimantsCSV:      os.Getenv("CLAIMANTS_CSV"),
		CohortsCSV:        os.Getenv("COHORTS_CSV"),
		ClaimantsPerVault: envIntDefault("CLAIMANTS_PER_VAULT", 10000),
		TreeShape:         envDefault("TREE_SHAPE", "wide"),
		MaxBatchBytes:     envIntDefault("MAX_BATCH_BYTES", 1232),
		MaxBatchOps:       envIntDefault("MAX_BATCH_OPS", 12),
		SubmitMaxAttempts: envIntDefault("SUBMIT_MAX_ATTEMPTS", 5),
		SubmitBaseDelayMS: envIntDefault("SUBMIT_BASE_DELAY_MS", 500),
		SubmitMaxDelayMS:  envIntDefault("SUBMIT_MAX_DELAY_MS", 8000),
		ConfirmTimeoutSec: envIntDefault("CONFIRM_TIMEOUT_SECONDS", 30),
		ConfirmPollMS:     envIntDefault("CONFIRM_POLL_MS", 400),
		DeployConcurrency: envIntDefault("DEPLOY_CONCURRENCY", 4),
	}
}

func (c Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

func (c Config) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollMS) * time.Millisecond
}

func (c Config) SubmitBaseDelay() time.Duration {
	return time.Duration(c.SubmitBaseDelayMS) * time.Millisecond
}

func (c Config) SubmitMaxDelay() time.Duration {
	return time.Duration(c.SubmitMaxDelayMS) * time.Millisecond
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envUint64Default(key string, def uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
