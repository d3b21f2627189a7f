package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at process start and passed by handle into the
// hub and protocol layer; core logic never reads the environment.
type Config struct {
	Addr           string
	TargetScore    int
	TurnSeconds    int // placeholder, not enforced by the rules
	ReconnectGrace time.Duration
	DatabaseURL    string
	Debug          bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           getenv("ADDR", ":8080"),
		TargetScore:    41,
		TurnSeconds:    0,
		ReconnectGrace: 2 * time.Minute,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Debug:          os.Getenv("DEBUG") == "true",
	}

	if v := os.Getenv("TARGET_SCORE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid TARGET_SCORE %q", v)
		}
		cfg.TargetScore = n
	}
	if v := os.Getenv("TURN_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid TURN_SECONDS %q", v)
		}
		cfg.TurnSeconds = n
	}
	if v := os.Getenv("RECONNECT_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RECONNECT_GRACE %q", v)
		}
		cfg.ReconnectGrace = d
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
