// Package config loads service settings from the environment. Every knob
// has a FAXAS_ prefixed variable and a default that works for local
// development; only the token secret is mandatory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTPAddr is the listen address for the API server.
	HTTPAddr string
	// PGDSN selects Postgres persistence; empty keeps everything in memory.
	PGDSN string
	// RedisAddr selects the shared rate-limit counter store; empty keeps
	// counters in process memory.
	RedisAddr string

	// AuthSecret signs and verifies access tokens.
	AuthSecret string
	// JWTIssuer and JWTAudience are matched exactly during verification.
	JWTIssuer   string
	JWTAudience string
	// JWTLeeway absorbs clock skew on the time-based claims.
	JWTLeeway time.Duration

	// AdminBypass lets admins operate on projects they are not members of.
	// Off unless explicitly enabled; every bypass is audited.
	AdminBypass bool

	// ThrottleRPS and ThrottleBurst bound per-client-IP request rates at
	// the edge, before authentication runs.
	ThrottleRPS   float64
	ThrottleBurst int

	// AuditBuffer is the in-flight capacity of the audit logger.
	AuditBuffer int
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getenv("FAXAS_HTTP_ADDR", ":8080"),
		PGDSN:         os.Getenv("FAXAS_PG_DSN"),
		RedisAddr:     os.Getenv("FAXAS_REDIS_ADDR"),
		AuthSecret:    os.Getenv("FAXAS_AUTH_SECRET"),
		JWTIssuer:     getenv("FAXAS_JWT_ISSUER", "faxas-property"),
		JWTAudience:   getenv("FAXAS_JWT_AUDIENCE", "faxas-property-api"),
		JWTLeeway:     getenvDuration("FAXAS_JWT_LEEWAY", 30*time.Second),
		AdminBypass:   getenvBool("FAXAS_ADMIN_BYPASS", false),
		ThrottleRPS:   getenvFloat("FAXAS_THROTTLE_RPS", 50),
		ThrottleBurst: getenvInt("FAXAS_THROTTLE_BURST", 100),
		AuditBuffer:   getenvInt("FAXAS_AUDIT_BUFFER", 256),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("config: FAXAS_AUTH_SECRET is required")
	}
	if len(c.AuthSecret) < 32 {
		return errors.New("config: FAXAS_AUTH_SECRET must be at least 32 bytes")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: FAXAS_HTTP_ADDR must not be empty")
	}
	if c.ThrottleRPS <= 0 || c.ThrottleBurst <= 0 {
		return errors.New("config: throttle rate and burst must be positive")
	}
	if c.JWTLeeway < 0 {
		return errors.New("config: FAXAS_JWT_LEEWAY must not be negative")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// String renders the config for startup logs with the secret masked.
func (c Config) String() string {
	secret := "unset"
	if c.AuthSecret != "" {
		secret = "set"
	}
	return fmt.Sprintf("addr=%s pg=%t redis=%t secret=%s issuer=%s audience=%s admin_bypass=%t",
		c.HTTPAddr, c.PGDSN != "", c.RedisAddr != "", secret, c.JWTIssuer, c.JWTAudience, c.AdminBypass)
}
