// Package config loads application configuration from environment
// variables. A .env file, when present, is loaded by the caller before
// any of the loaders run.
package config

import (
	"log"
	"os"
	"time"
)

// Config holds the core runtime settings. Each field corresponds to an
// environment variable; subsystems with many knobs (rate limiting,
// caching, payments, the broker) have their own loaders.
type Config struct {
	Env          string // APP_ENV, e.g. dev or prod
	Port         string // APP_PORT
	DatabaseURL  string // DATABASE_URL, postgres:// or sqlite://; overrides the DB_* fields
	DBUser       string
	DBPass       string // may be empty
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string

	// StrictQuantity rejects malformed reservation quantities instead
	// of treating them as 1.
	StrictQuantity bool
	// ReservationTTL enables the expiry sweeper when positive.
	ReservationTTL time.Duration
	SweepInterval  time.Duration
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message. The MySQL variables are required
// only when DATABASE_URL is unset.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           must("APP_PORT"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBPass:         os.Getenv("DB_PASS"),
		JWTSecret:      must("JWT_SECRET"),
		StrictQuantity: envBool("RESERVATION_STRICT_QUANTITY", false),
		ReservationTTL: envDur("RESERVATION_TTL", 0),
		SweepInterval:  envDur("RESERVATION_SWEEP_INTERVAL", 0),
	}
	if cfg.DatabaseURL == "" {
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	if cfg.ReservationTTL < 0 {
		cfg.ReservationTTL = 0
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// AccessTokenTTL is the lifetime of locally minted access tokens,
// ACCESS_TOKEN_TTL_MIN minutes (default 60).
func AccessTokenTTL() time.Duration {
	return time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute
}
