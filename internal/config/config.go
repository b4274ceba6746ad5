// Package config loads runtime configuration from environment variables, with
// a best-effort .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the netchess backend.
type Config struct {
	// TCPAddr is the listen address for the framed TCP protocol.
	TCPAddr string
	// HTTPAddr is the listen address for the HTTP sidecar (/healthz, /games, /ws).
	HTTPAddr string
	// InitialClock is each side's time allotment at game start.
	InitialClock time.Duration
}

// Load reads the environment and returns a populated Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		TCPAddr:      envOr("NETCHESS_TCP_ADDR", ":5555"),
		HTTPAddr:     envOr("NETCHESS_HTTP_ADDR", ":8080"),
		InitialClock: time.Duration(envIntOr("NETCHESS_CLOCK_SECONDS", 600)) * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
