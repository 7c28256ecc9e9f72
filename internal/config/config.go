// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oriphim/devicetoken/internal/domain/model"
)

// MinSigningKeyBytes is the shortest accepted HS256 signing key.
const MinSigningKeyBytes = 32

// Config holds the exchange server configuration loaded from environment variables.
type Config struct {
	SigningKey     []byte
	ListenAddr     string
	DBPath         string
	TokenTTL       time.Duration
	Issuer         string
	Audience       string
	DefaultTier    model.Tier
	RequestTimeout time.Duration
	RateLimit      float64 // exchanges per second; 0 disables limiting
	RateBurst      int
	LogLevel       slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// DEVICETOKEN_SIGNING_KEY is required and must be at least MinSigningKeyBytes long;
// the server refuses to start without it.
// Optional variables with defaults: DEVICETOKEN_LISTEN_ADDR (127.0.0.1:8080),
// DEVICETOKEN_DB_PATH (devicetoken.db), DEVICETOKEN_TOKEN_TTL (24h),
// DEVICETOKEN_ISSUER (devicetoken), DEVICETOKEN_AUDIENCE (authenticated),
// DEVICETOKEN_DEFAULT_TIER (free), DEVICETOKEN_REQUEST_TIMEOUT (10s),
// DEVICETOKEN_RATE_LIMIT (20), DEVICETOKEN_RATE_BURST (40), DEVICETOKEN_LOG_LEVEL (info).
func Load() (*Config, error) {
	key := os.Getenv("DEVICETOKEN_SIGNING_KEY")
	if key == "" {
		return nil, fmt.Errorf("DEVICETOKEN_SIGNING_KEY is required")
	}
	if len(key) < MinSigningKeyBytes {
		return nil, fmt.Errorf("DEVICETOKEN_SIGNING_KEY must be at least %d bytes, got %d", MinSigningKeyBytes, len(key))
	}

	tokenTTL, err := durationEnv("DEVICETOKEN_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := durationEnv("DEVICETOKEN_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	rateLimit := 20.0
	if v, ok := os.LookupEnv("DEVICETOKEN_RATE_LIMIT"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("DEVICETOKEN_RATE_LIMIT has invalid value %q", v)
		}
		rateLimit = parsed
	}

	rateBurst := 40
	if v, ok := os.LookupEnv("DEVICETOKEN_RATE_BURST"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("DEVICETOKEN_RATE_BURST has invalid value %q", v)
		}
		rateBurst = parsed
	}

	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("DEVICETOKEN_LOG_LEVEL"); ok {
		if err := logLevel.UnmarshalText([]byte(strings.ToLower(v))); err != nil {
			return nil, fmt.Errorf("DEVICETOKEN_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return &Config{
		SigningKey:     []byte(key),
		ListenAddr:     stringEnv("DEVICETOKEN_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:         stringEnv("DEVICETOKEN_DB_PATH", "devicetoken.db"),
		TokenTTL:       tokenTTL,
		Issuer:         stringEnv("DEVICETOKEN_ISSUER", "devicetoken"),
		Audience:       stringEnv("DEVICETOKEN_AUDIENCE", "authenticated"),
		DefaultTier:    model.Tier(stringEnv("DEVICETOKEN_DEFAULT_TIER", string(model.DefaultTier))),
		RequestTimeout: requestTimeout,
		RateLimit:      rateLimit,
		RateBurst:      rateBurst,
		LogLevel:       logLevel,
	}, nil
}

// RunnerConfig holds the Runner agent configuration.
type RunnerConfig struct {
	APIKey        string
	CloudEndpoint string
	RefreshMargin time.Duration
}

// LoadRunner reads the Runner configuration. ORIPHIM_API_KEY is required.
// Optional variables with defaults: ORIPHIM_CLOUD_ENDPOINT (http://127.0.0.1:8080/api/v1),
// ORIPHIM_REFRESH_MARGIN (1h).
func LoadRunner() (*RunnerConfig, error) {
	apiKey := os.Getenv("ORIPHIM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ORIPHIM_API_KEY is required")
	}

	margin, err := durationEnv("ORIPHIM_REFRESH_MARGIN", time.Hour)
	if err != nil {
		return nil, err
	}

	return &RunnerConfig{
		APIKey:        apiKey,
		CloudEndpoint: strings.TrimRight(stringEnv("ORIPHIM_CLOUD_ENDPOINT", "http://127.0.0.1:8080/api/v1"), "/"),
		RefreshMargin: margin,
	}, nil
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return parsed, nil
}
