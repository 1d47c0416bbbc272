// Package config loads and validates the pipeline configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration.
type PolymarketConfig struct {
	GammaAPIURL    string        `mapstructure:"gamma_api_url"`
	ClobAPIURL     string        `mapstructure:"clob_api_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
}

// FetchConfig controls the market discovery step.
type FetchConfig struct {
	TagID          int   `mapstructure:"tag_id"`
	ExcludedTagIDs []int `mapstructure:"excluded_tag_ids"`
	PageLimit      int   `mapstructure:"page_limit"`
}

// EnrichConfig controls the price-history enrichment step.
type EnrichConfig struct {
	WindowDays      int           `mapstructure:"window_days"`
	FidelityMinutes int           `mapstructure:"fidelity_minutes"`
	MatchTolerance  time.Duration `mapstructure:"match_tolerance"`
}

// PathsConfig names the input and output files of each step.
type PathsConfig struct {
	MarketsCSV  string `mapstructure:"markets_csv"`
	LabeledCSV  string `mapstructure:"labeled_csv"`
	EnrichedCSV string `mapstructure:"enriched_csv"`
	SlugList    string `mapstructure:"slug_list"`
	EventsJSON  string `mapstructure:"events_json"`
	CollatedCSV string `mapstructure:"collated_csv"`
}

// StorageConfig holds the price-cache database configuration.
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	CachePrices bool   `mapstructure:"cache_prices"`
}

// TelegramConfig holds run-summary notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("ELECTIONCAL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_api_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_base", "1s")
	v.SetDefault("polymarket.request_delay", "150ms")

	v.SetDefault("fetch.tag_id", 102786) // November Elections
	v.SetDefault("fetch.excluded_tag_ids", []int{264, 189})
	v.SetDefault("fetch.page_limit", 250)

	v.SetDefault("enrich.window_days", 7)
	v.SetDefault("enrich.fidelity_minutes", 1440) // daily candles
	v.SetDefault("enrich.match_tolerance", "2h")

	v.SetDefault("paths.markets_csv", "./data/nov_elections_markets.csv")
	v.SetDefault("paths.labeled_csv", "./data/all_elections_labeled.csv")
	v.SetDefault("paths.enriched_csv", "./data/all_elections_processed.csv")
	v.SetDefault("paths.slug_list", "./data/senate.txt")
	v.SetDefault("paths.events_json", "./data/senate_events_raw.json")
	v.SetDefault("paths.collated_csv", "./data/senate_collated.csv")

	v.SetDefault("storage.db_path", "./data/electioncal.db")
	v.SetDefault("storage.cache_prices", true)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.ClobAPIURL == "" {
		return fmt.Errorf("polymarket.clob_api_url is required")
	}
	if c.Polymarket.Timeout < time.Second {
		return fmt.Errorf("polymarket.timeout must be at least 1 second")
	}
	if c.Polymarket.MaxRetries < 1 {
		return fmt.Errorf("polymarket.max_retries must be at least 1")
	}
	if c.Polymarket.RequestDelay < 0 {
		return fmt.Errorf("polymarket.request_delay must not be negative")
	}

	if c.Fetch.TagID <= 0 {
		return fmt.Errorf("fetch.tag_id is required")
	}
	if c.Fetch.PageLimit < 1 || c.Fetch.PageLimit > 500 {
		return fmt.Errorf("fetch.page_limit must be between 1 and 500")
	}

	if c.Enrich.WindowDays < 1 || c.Enrich.WindowDays > 30 {
		return fmt.Errorf("enrich.window_days must be between 1 and 30")
	}
	if c.Enrich.FidelityMinutes < 1 {
		return fmt.Errorf("enrich.fidelity_minutes must be at least 1")
	}
	if c.Enrich.MatchTolerance <= 0 {
		return fmt.Errorf("enrich.match_tolerance must be positive")
	}

	if c.Paths.LabeledCSV == "" {
		return fmt.Errorf("paths.labeled_csv is required")
	}
	if c.Paths.EnrichedCSV == "" {
		return fmt.Errorf("paths.enriched_csv is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
