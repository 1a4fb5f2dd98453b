package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Application settings
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Store     StoreConfig
	Redis     RedisConfig
	Analytics AnalyticsConfig
}

// Server settings
type ServerConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects and configures the event store backend.
type StoreConfig struct {
	Driver             string // postgres, http or memory
	DatabaseURL        string
	BaseURL            string
	APIKey             string
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
}

// RedisConfig is optional; an empty Addr disables the credential cache.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	CredentialTTL time.Duration
}

// AnalyticsConfig can also be set from the YAML file named by ATTRIBUTION_CONFIG.
type AnalyticsConfig struct {
	Timezone         string   `yaml:"timezone"`
	DefaultRangeDays int      `yaml:"default_range_days"`
	MaxRangeDays     int      `yaml:"max_range_days"`
	FollowerPlatform string   `yaml:"follower_platform"`
	SignupPlatform   string   `yaml:"signup_platform"`
	SocialSources    []string `yaml:"social_sources"`
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// Load reads an optional .env file, then the environment, then the optional
// attribution YAML file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			RequestTimeout:  getDurationEnv("HTTP_REQUEST_TIMEOUT", "30s"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", "10s"),
		},
		Store: StoreConfig{
			Driver:             strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			DatabaseURL:        getEnv("DATABASE_URL", ""),
			BaseURL:            getEnv("STORE_BASE_URL", ""),
			APIKey:             getEnv("STORE_API_KEY", ""),
			RequestTimeout:     getDurationEnv("STORE_REQUEST_TIMEOUT", "15s"),
			MaxRetries:         getIntEnv("STORE_MAX_RETRIES", 3),
			RetryBackoff:       getDurationEnv("STORE_RETRY_BACKOFF", "500ms"),
			RateLimitPerSecond: getIntEnv("STORE_RATE_LIMIT_PER_SECOND", 20),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getIntEnv("REDIS_DB", 0),
			CredentialTTL: getDurationEnv("CREDENTIAL_CACHE_TTL", "1m"),
		},
		Analytics: AnalyticsConfig{
			Timezone:         getEnv("ANALYTICS_TIMEZONE", "America/Chicago"),
			DefaultRangeDays: getIntEnv("ANALYTICS_DEFAULT_RANGE_DAYS", 30),
			MaxRangeDays:     getIntEnv("ANALYTICS_MAX_RANGE_DAYS", 731),
			FollowerPlatform: getEnv("FOLLOWER_PLATFORM", "meta"),
			SignupPlatform:   getEnv("SIGNUP_PLATFORM", "google"),
			SocialSources:    getListEnv("SOCIAL_SOURCES", []string{"igdm", "fbdm", "ttdm", "dm"}),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if path := getEnv("ATTRIBUTION_CONFIG", ""); path != "" {
		if err := config.Analytics.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case "http":
		if c.Store.BaseURL == "" {
			return errors.New("STORE_BASE_URL is required for the http store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Analytics.DefaultRangeDays < 1 {
		return errors.New("ANALYTICS_DEFAULT_RANGE_DAYS must be at least 1")
	}
	if c.Analytics.DefaultRangeDays > c.Analytics.MaxRangeDays {
		return errors.New("ANALYTICS_DEFAULT_RANGE_DAYS must not exceed ANALYTICS_MAX_RANGE_DAYS")
	}
	// Each platform's spend backs exactly one headline figure.
	if strings.EqualFold(strings.TrimSpace(c.Analytics.FollowerPlatform), strings.TrimSpace(c.Analytics.SignupPlatform)) {
		return fmt.Errorf("FOLLOWER_PLATFORM and SIGNUP_PLATFORM must differ, both are %q", c.Analytics.FollowerPlatform)
	}
	return nil
}

// mergeFile overrides analytics settings with the non-empty values in a YAML file.
func (a *AnalyticsConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read attribution config: %w", err)
	}

	var file AnalyticsConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse attribution config: %w", err)
	}

	if file.Timezone != "" {
		a.Timezone = file.Timezone
	}
	if file.DefaultRangeDays > 0 {
		a.DefaultRangeDays = file.DefaultRangeDays
	}
	if file.MaxRangeDays > 0 {
		a.MaxRangeDays = file.MaxRangeDays
	}
	if file.FollowerPlatform != "" {
		a.FollowerPlatform = file.FollowerPlatform
	}
	if file.SignupPlatform != "" {
		a.SignupPlatform = file.SignupPlatform
	}
	if len(file.SocialSources) > 0 {
		a.SocialSources = file.SocialSources
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// comma separated
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
