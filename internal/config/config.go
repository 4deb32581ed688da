package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL          string
	HTTPAddr             string
	PollInterval         int // seconds, scheduler tick
	ShutdownTimeout      int // seconds
	StaleThresholdMin    int // minutes before an in_progress job counts as stale
	MinSyncIntervalMin   int // minutes between completed syncs for one key
	BatchSize            int // records requested per adapter fetch
	MaxRecordsPerAccount int // per-kind ceiling on synced records
	RateLimitDelayMs     int // delay between adapter batch calls
	NeonBaseURL          string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		DatabaseURL:          dbURL,
		HTTPAddr:             envString("HTTP_ADDR", ":8080"),
		PollInterval:         envInt("POLL_INTERVAL", 60),
		ShutdownTimeout:      envInt("SHUTDOWN_TIMEOUT", 30),
		StaleThresholdMin:    envInt("STALE_THRESHOLD_MINUTES", 30),
		MinSyncIntervalMin:   envInt("MIN_SYNC_INTERVAL_MINUTES", 15),
		BatchSize:            envInt("BATCH_SIZE", 50),
		MaxRecordsPerAccount: envInt("MAX_RECORDS_PER_ACCOUNT", 10000),
		RateLimitDelayMs:     envInt("RATE_LIMIT_DELAY_MS", 1000),
		NeonBaseURL:          envString("NEON_BASE_URL", "https://api.neoncrm.example.com"),
	}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: invalid %s=%q, using default %d\n", key, v, fallback)
		return fallback
	}
	return n
}
