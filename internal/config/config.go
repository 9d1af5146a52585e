// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Betting  BettingConfig  `mapstructure:"betting"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string `mapstructure:"token"`
	GroupChatID int64  `mapstructure:"group_chat_id"`
	// WebhookURL switches the bot from long polling to webhook delivery
	// when set.
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookListen string `mapstructure:"webhook_listen"`
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

// HTTPConfig holds the mini-app API server configuration.
type HTTPConfig struct {
	Listen     string `mapstructure:"listen"`
	MiniAppURL string `mapstructure:"mini_app_url"`
}

// AdminConfig holds admin bootstrap configuration. InitialID seeds the
// admins table on first start when no admin exists yet.
type AdminConfig struct {
	InitialID       int64  `mapstructure:"initial_id"`
	InitialUsername string `mapstructure:"initial_username"`
}

// BettingConfig holds settlement parameters.
type BettingConfig struct {
	// CommissionPercent is the house cut on a win, as a percentage of one
	// side's stake.
	CommissionPercent int64 `mapstructure:"commission_percent"`
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

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, BOT_GROUP_CHAT_ID.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	if cfg.Bot.GroupChatID == 0 {
		return nil, fmt.Errorf("bot.group_chat_id is required")
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ludobot")
	v.SetDefault("database.name", "ludobot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("bot.webhook_listen", ":8443")

	v.SetDefault("betting.commission_percent", 5)
}
