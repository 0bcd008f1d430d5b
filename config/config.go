package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken   string
	TelegramAPIURL  string
	CheckInterval   time.Duration
	CleanupInterval time.Duration
	FetchWorkers    int
	LogLevel        string
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// Load loads configuration from environment variables
func (c *Config) Load() error {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Read .env file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Required fields
	c.TelegramToken = viper.GetString("TELEGRAM_BOT_TOKEN")
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Optional fields with defaults
	c.TelegramAPIURL = viper.GetString("TELEGRAM_API_URL")
	if c.TelegramAPIURL == "" {
		c.TelegramAPIURL = "https://api.telegram.org"
	}

	c.CheckInterval = viper.GetDuration("CHECK_INTERVAL")
	if c.CheckInterval == 0 {
		c.CheckInterval = 60 * time.Second
	}

	c.CleanupInterval = viper.GetDuration("CLEANUP_INTERVAL")
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Hour
	}

	c.FetchWorkers = viper.GetInt("FETCH_WORKERS")
	if c.FetchWorkers < 1 {
		c.FetchWorkers = 5
	}

	c.LogLevel = viper.GetString("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}
