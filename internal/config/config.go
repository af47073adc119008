// Package config loads process settings from the environment and the model
// calibration file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the process configuration of the API server and CLI.
type Settings struct {
	Port                string
	DatabaseURL         string
	Migrate             bool
	MigrationsDir       string
	RedisURL            string
	AuthMode            string
	AuthHMACSecret      string
	AuthDistrictClaim   string
	AuthRoleClaim       string
	RateRPS             float64
	RateBurst           int
	StoreWriteTimeout   time.Duration
	UnsavedScenarioTTL  time.Duration
	ProviderReadTimeout time.Duration
	ParallelThreshold   int
	ModelConfigPath     string
	LogLevel            string
	WebhookURL          string
	WebhookSecret       string
	WebhookMaxAttempts  int
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load %s: %w", strings.Join(present, ", "), err)
	}
	return nil
}

// FromEnv reads Settings from the environment, applying defaults.
func FromEnv() (Settings, error) {
	s := Settings{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MigrationsDir:     getEnv("MIGRATIONS_DIR", "db/migrations"),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		AuthMode:          strings.ToLower(getEnv("AUTH_MODE", "dev")),
		AuthHMACSecret:    os.Getenv("AUTH_HMAC_SECRET"),
		AuthDistrictClaim: getEnv("AUTH_DISTRICT_CLAIM", "district"),
		AuthRoleClaim:     getEnv("AUTH_ROLE_CLAIM", "role"),
		ModelConfigPath:   os.Getenv("MODEL_CONFIG"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		WebhookURL:        strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
	}
	var err error
	if s.Migrate, err = parseBool("DB_MIGRATE", true); err != nil {
		return Settings{}, err
	}
	if s.RateRPS, err = parseFloat("RATE_RPS", 0); err != nil {
		return Settings{}, err
	}
	if s.RateBurst, err = parseInt("RATE_BURST", 20); err != nil {
		return Settings{}, err
	}
	if s.ParallelThreshold, err = parseInt("PARALLEL_DETECT_THRESHOLD", 500); err != nil {
		return Settings{}, err
	}
	if s.WebhookMaxAttempts, err = parseInt("WEBHOOK_MAX_ATTEMPTS", 5); err != nil {
		return Settings{}, err
	}
	if s.StoreWriteTimeout, err = parseDuration("STORE_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Settings{}, err
	}
	if s.ProviderReadTimeout, err = parseDuration("PROVIDER_READ_TIMEOUT", 5*time.Second); err != nil {
		return Settings{}, err
	}
	if s.UnsavedScenarioTTL, err = parseDuration("UNSAVED_SCENARIO_TTL", time.Hour); err != nil {
		return Settings{}, err
	}
	switch s.AuthMode {
	case "dev", "hmac":
	default:
		return Settings{}, fmt.Errorf("AUTH_MODE: unknown mode %q (want dev or hmac)", s.AuthMode)
	}
	if s.AuthMode == "hmac" && s.AuthHMACSecret == "" {
		return Settings{}, fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
	}
	return s, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: must be >= 0, got %d", key, n)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s: must be >= 0, got %v", key, f)
	}
	return f, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0, got %s", key, d)
	}
	return d, nil
}
