package main

import (
	"fmt"
	"os"
	"time"
)

// Config collects every tunable of the coordinator. Values come from
// the environment with production defaults.
type Config struct {
	ListenAddr    string // wire protocol endpoint
	ListenBacklog int    // advisory; the kernel backlog absorbs waiting peers
	AdminAddr     string // metrics / event-stream HTTP endpoint, "" disables

	MaxThreads int // worker pool size
	MaxNodes   int // SGX table capacity

	SGXTLowerBound int
	SGXTUpperBound int
	TotalTiers     int

	ReadTimeout time.Duration // per-request read deadline

	RegisterRate  float64 // register requests per second per peer
	RegisterBurst int

	AttestationRequired bool

	RedisAddr   string // event pub/sub, "" selects the log publisher
	PostgresDSN string // leadership audit sink, "" disables
}

// LoadConfig reads the environment and applies defaults.
func LoadConfig() *Config {
	cfg := &Config{
		ListenAddr:     "0.0.0.0:9000",
		ListenBacklog:  20,
		AdminAddr:      os.Getenv("POET_ADMIN_ADDR"),
		MaxThreads:     20,
		MaxNodes:       10000,
		SGXTLowerBound: 1,
		SGXTUpperBound: 1000,
		TotalTiers:     10,
		ReadTimeout:    5 * time.Minute,
		RegisterRate:   10,
		RegisterBurst:  20,
		RedisAddr:      os.Getenv("POET_REDIS_ADDR"),
		PostgresDSN:    os.Getenv("POET_POSTGRES_DSN"),
	}

	if addr := os.Getenv("POET_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	readIntEnv("POET_LISTEN_BACKLOG", &cfg.ListenBacklog)
	readIntEnv("POET_MAX_THREADS", &cfg.MaxThreads)
	readIntEnv("POET_MAX_NODES", &cfg.MaxNodes)
	readIntEnv("POET_SGXT_MIN", &cfg.SGXTLowerBound)
	readIntEnv("POET_SGXT_MAX", &cfg.SGXTUpperBound)
	readIntEnv("POET_TOTAL_TIERS", &cfg.TotalTiers)

	readTimeoutSecs := 0
	if readIntEnv("POET_READ_TIMEOUT_SECONDS", &readTimeoutSecs) {
		cfg.ReadTimeout = time.Duration(readTimeoutSecs) * time.Second
	}

	if os.Getenv("POET_ATTESTATION_REQUIRED") == "true" {
		cfg.AttestationRequired = true
	}

	return cfg
}

// readIntEnv parses a positive integer environment variable into dst,
// leaving the default in place when unset or malformed. It reports
// whether a value was stored.
func readIntEnv(name string, dst *int) bool {
	s := os.Getenv(name)
	if s == "" {
		return false
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil || v <= 0 {
		return false
	}
	*dst = v
	return true
}
