// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"retro-league-bot/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Bot               BotConfig       `mapstructure:"bot"`
	Database          DatabaseConfig  `mapstructure:"database"`
	RetroAchievements RAConfig        `mapstructure:"retroachievements"`
	Scheduler         SchedulerConfig `mapstructure:"scheduler"`
	Metrics           MetricsConfig   `mapstructure:"metrics"`
	League            LeagueConfig    `mapstructure:"league"`
}

// BotConfig holds Telegram bot configuration.
// LeagueChatID is the chat that mastery announcements are posted to.
type BotConfig struct {
	Token        string  `mapstructure:"token"`
	LeagueChatID int64   `mapstructure:"league_chat_id"`
	Whitelist    []int64 `mapstructure:"whitelist"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RAConfig holds RetroAchievements API client configuration.
type RAConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Username          string        `mapstructure:"username"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	GameCacheMB       int           `mapstructure:"game_cache_mb"`
	GameCacheTTL      time.Duration `mapstructure:"game_cache_ttl"`
}

// SchedulerConfig holds the mastery check scheduling configuration.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
// An empty address disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LeagueConfig holds the static league roster.
type LeagueConfig struct {
	Members []model.LeagueMember `mapstructure:"members"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, RETROACHIEVEMENTS_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "leaguebot")
	v.SetDefault("database.name", "leaguebot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// RetroAchievements API defaults
	v.SetDefault("retroachievements.base_url", "https://retroachievements.org/API")
	v.SetDefault("retroachievements.timeout", "15s")
	v.SetDefault("retroachievements.requests_per_second", 2.0)
	v.SetDefault("retroachievements.burst", 5)
	v.SetDefault("retroachievements.max_concurrency", 10)
	v.SetDefault("retroachievements.game_cache_mb", 16)
	v.SetDefault("retroachievements.game_cache_ttl", "6h")

	// Scheduler defaults
	v.SetDefault("scheduler.interval", "3m")
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Bot.Whitelist) == 0 {
		return true
	}
	for _, id := range c.Bot.Whitelist {
		if id == chatID {
			return true
		}
	}
	return false
}

// MemberByTelegramID looks up a league member by Telegram user ID.
func (c *Config) MemberByTelegramID(userID int64) (model.LeagueMember, bool) {
	for _, m := range c.League.Members {
		if m.TelegramID == userID {
			return m, true
		}
	}
	return model.LeagueMember{}, false
}
