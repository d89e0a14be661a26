// Package config loads the venue's runtime configuration: a Default()
// baseline overridden by an optional .env file (github.com/joho/godotenv)
// and then by real environment variables, read directly with os.Getenv
// rather than through a struct-tag decoder.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the venue process's full runtime configuration.
type Config struct {
	ListenAddr string
	CORSOrigin string
	LogLevel   string

	StorePath string

	AccountID       string
	StartingCash    int64
	StartingCurrency string

	RiskQueueCapacity      int
	ExecutionQueueCapacity int
	QueueGaugeInterval     time.Duration

	EnableSim        bool
	SimOrderInterval time.Duration

	FillModel FillModel
}

// FillModel mirrors matching/fillmodel.Config so config stays independent
// of the matching package's import graph.
type FillModel struct {
	ProbFillAtLimit float64
	ProbSlippage    float64
	RandomSeed      int64
}

// Default returns the venue's baseline configuration for local runs.
func Default() Config {
	return Config{
		ListenAddr:             ":8080",
		CORSOrigin:             "*",
		LogLevel:               "info",
		StorePath:              "./data/venuecore.pebble",
		AccountID:              "local",
		StartingCash:           1_000_000_00,
		StartingCurrency:       "USD",
		RiskQueueCapacity:      10000,
		ExecutionQueueCapacity: 10000,
		QueueGaugeInterval:     5 * time.Second,
		EnableSim:              false,
		SimOrderInterval:       200 * time.Millisecond,
		FillModel: FillModel{
			ProbFillAtLimit: 0.5,
			ProbSlippage:    0.1,
			RandomSeed:      1,
		},
	}
}

// LoadFromEnv loads an optional .env file (envPath, or the working
// directory's .env when empty) and layers real environment variables over
// Default(). Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StorePath = getEnv("STORE_PATH", cfg.StorePath)
	cfg.AccountID = getEnv("ACCOUNT_ID", cfg.AccountID)
	cfg.StartingCurrency = getEnv("STARTING_CURRENCY", cfg.StartingCurrency)

	cfg.StartingCash = getEnvInt64("STARTING_CASH", cfg.StartingCash)
	cfg.RiskQueueCapacity = int(getEnvInt64("RISK_QUEUE_CAPACITY", int64(cfg.RiskQueueCapacity)))
	cfg.ExecutionQueueCapacity = int(getEnvInt64("EXECUTION_QUEUE_CAPACITY", int64(cfg.ExecutionQueueCapacity)))
	cfg.QueueGaugeInterval = getEnvDuration("QUEUE_GAUGE_INTERVAL_MS", cfg.QueueGaugeInterval)

	cfg.EnableSim = getEnvBool("ENABLE_SIM", cfg.EnableSim)
	cfg.SimOrderInterval = getEnvDuration("SIM_ORDER_INTERVAL_MS", cfg.SimOrderInterval)

	cfg.FillModel.ProbFillAtLimit = getEnvFloat("FILL_PROB_AT_LIMIT", cfg.FillModel.ProbFillAtLimit)
	cfg.FillModel.ProbSlippage = getEnvFloat("FILL_PROB_SLIPPAGE", cfg.FillModel.ProbSlippage)
	cfg.FillModel.RandomSeed = getEnvInt64("FILL_RANDOM_SEED", cfg.FillModel.RandomSeed)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
