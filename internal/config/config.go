package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity store backends.
const (
	IdentityStoreFile   = "file"
	IdentityStoreRedis  = "redis"
	IdentityStoreMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	PortalPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// APIBaseURL is the REST backend every request is sent to.
	APIBaseURL    string
	APITimeout    time.Duration
	APIRatePerSec int
	IdentityStore string
	IdentityFile  string
	// DeviceID names this terminal's identity hash in the Redis store.
	DeviceID       string
	RedisURL       string
	CacheTTL       time.Duration
	AutosaveEvery  time.Duration
	LoginPerMinute int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		PortalPort:     getEnv("PORTAL_PORT", "5173"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		APIBaseURL:     strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
		APITimeout:     time.Duration(getEnvInt("API_TIMEOUT_SECONDS", 15)) * time.Second,
		APIRatePerSec:  getEnvInt("API_RATE_PER_SECOND", 20),
		IdentityStore:  getEnv("IDENTITY_STORE", IdentityStoreFile),
		IdentityFile:   getEnv("IDENTITY_FILE", ".exstem-identity.json"),
		DeviceID:       getEnv("DEVICE_ID", hostname()),
		RedisURL:       getEnv("REDIS_URL", ""),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		AutosaveEvery:  time.Duration(getEnvInt("AUTOSAVE_INTERVAL_SECONDS", 30)) * time.Second,
		LoginPerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 30),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "portal"
	}
	return h
}

func getEnvInt(key string, fallback int) int {
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

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
