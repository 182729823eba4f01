// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache modes for CHARGE_CACHE.
const (
	CacheOff    = "off"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	Migrate         bool
	MigrationsDir   string
	RedisURL        string
	HolidaysFile    string
	AllowOrigins    []string
	RateRPS         float64
	RateBurst       int
	WebhookURLs     []string
	WebhookSecret   string
	WebhookAttempts int
	ChargeCache     string
	ShutdownTimeout time.Duration
}

// Load reads the environment. Call godotenv.Load first if a .env file should apply.
func Load() (Config, error) {
	c := Config{
		Port:            envOrDefault("PORT", "4000"),
		Env:             envOrDefault("APP_ENV", "production"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:         envOrDefault("DB_MIGRATE", "true") != "false",
		MigrationsDir:   envOrDefault("MIGRATIONS_DIR", "db/migrations"),
		RedisURL:        strings.TrimSpace(os.Getenv("REDIS_URL")),
		HolidaysFile:    strings.TrimSpace(os.Getenv("HOLIDAYS_FILE")),
		AllowOrigins:    splitList(envOrDefault("ALLOW_ORIGINS", "*")),
		RateRPS:         envOrDefaultFloat("RATE_RPS", 20),
		RateBurst:       envOrDefaultInt("RATE_BURST", 40),
		WebhookURLs:     splitList(os.Getenv("WEBHOOK_URLS")),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		WebhookAttempts: envOrDefaultInt("WEBHOOK_MAX_ATTEMPTS", 10),
		ChargeCache:     strings.ToLower(envOrDefault("CHARGE_CACHE", CacheOff)),
		ShutdownTimeout: time.Duration(envOrDefaultInt("SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: PORT %q is not a number", c.Port)
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("config: RATE_RPS and RATE_BURST must be positive")
	}
	if c.WebhookAttempts <= 0 {
		return fmt.Errorf("config: WEBHOOK_MAX_ATTEMPTS must be positive")
	}
	switch c.ChargeCache {
	case CacheOff, CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: CHARGE_CACHE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown CHARGE_CACHE %q", c.ChargeCache)
	}
	return nil
}

func (c Config) Development() bool { return c.Env == "development" }

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
