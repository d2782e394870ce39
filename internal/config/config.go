package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Telegram destination
	TelegramBotToken     string
	TelegramTargetChatID string

	// VK API credentials
	VKAccessToken string
	VKAPIVersion  string

	// Persistence
	DatabasePath string

	// Source list
	SourcesFile string

	// Pipeline timing
	ScrapeInterval time.Duration
	PostCheckDelay time.Duration
	FetchLimit     int

	// Per-source rate limiting and backoff
	RateLimitRequestsPerMinute int
	MaxRetries                 int
	BaseDelay                  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramTargetChatID: getEnv("TELEGRAM_TARGET_CHAT_ID", ""),

		VKAccessToken: getEnv("VK_ACCESS_TOKEN", ""),
		VKAPIVersion:  getEnv("VK_API_VERSION", "5.131"),

		DatabasePath: getEnv("DATABASE_PATH", "data/seen_posts.db"),
		SourcesFile:  getEnv("SOURCES_FILE", "sources.yaml"),

		ScrapeInterval: getDurationEnv("SCRAPE_INTERVAL", 60*time.Second),
		PostCheckDelay: getDurationEnv("POST_CHECK_DELAY", 600*time.Second),
		FetchLimit:     getIntEnv("FETCH_LIMIT", 1),

		RateLimitRequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
		MaxRetries:                 getIntEnv("MAX_RETRIES", 5),
		BaseDelay:                  getDurationEnv("BASE_DELAY", time.Second),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if c.TelegramTargetChatID == "" {
		return fmt.Errorf("TELEGRAM_TARGET_CHAT_ID is required")
	}

	if c.ScrapeInterval <= 0 {
		return fmt.Errorf("SCRAPE_INTERVAL must be positive")
	}

	if c.PostCheckDelay < 0 {
		return fmt.Errorf("POST_CHECK_DELAY must not be negative")
	}

	if c.RateLimitRequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive")
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("MAX_RETRIES must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s", "10m") or plain seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
