package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the env-backed service configuration. A .env file is loaded if
// present; real environment variables win.
type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	CacheTTL    time.Duration
	LogLevel    string

	// WrongDefaultSort simulates the known wrong-default-sort condition:
	// when active the planner forces title ascending for callers who asked
	// for the default creation-time sort.
	WrongDefaultSort bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CacheTTL:         5 * time.Minute,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		WrongDefaultSort: getBool("FEATURE_WRONG_DEFAULT_SORT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	if raw := os.Getenv("SEARCH_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SEARCH_CACHE_TTL %q: %w", raw, err)
		}
		cfg.CacheTTL = ttl
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && value
}
