package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// WebhookPath is the fixed suffix under which Telegram delivers updates.
// The full public URL is always derived via Config.WebhookURL.
const WebhookPath = "/webhook/bot"

const (
	// DriverPostgres selects the networked relational backend.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded file backend.
	DriverSQLite = "sqlite"
)

// TelegramConfig holds bot credential and admin identity settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"ADMIN_ID"`
	// APIBase overrides the Bot API endpoint, used by tests.
	APIBase string `yaml:"api_base" envconfig:"TELEGRAM_API_BASE"`
}

// WebhookConfig specifies the public base URL and the local listener.
type WebhookConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"WEBAPP_URL"`
	Listen  string `yaml:"listen" envconfig:"LISTEN_ADDR"`
	Port    int    `yaml:"port" envconfig:"PORT"`
}

// DatabaseConfig selects and configures one of the two storage backends.
type DatabaseConfig struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`

	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`

	// Path is the database file location for the sqlite driver.
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format  string `yaml:"format" envconfig:"LOG_FORMAT"`
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// Config aggregates all service configuration. It is loaded once at startup
// and never re-read mid-process.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads configuration from an optional YAML file and environment
// variables. A missing file is not an error: the environment alone may
// carry the full configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only configuration
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram admin_id is required")
	}
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = "https://api.telegram.org"
	}

	if strings.TrimSpace(cfg.Webhook.BaseURL) == "" {
		return fmt.Errorf("webhook.base_url is required")
	}
	if cfg.Webhook.Listen == "" {
		cfg.Webhook.Listen = "0.0.0.0"
	}
	if cfg.Webhook.Port <= 0 {
		cfg.Webhook.Port = 5000
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres driver")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = 10
		}
	case DriverSQLite:
		if cfg.Database.Path == "" {
			cfg.Database.Path = "shop.db"
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", cfg.Database.Driver)
	}
	cfg.Database.Driver = driver

	return nil
}

// WebhookURL derives the desired public webhook URL from the configured
// base URL. All call sites must use this instead of building the URL by hand.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(strings.TrimSpace(c.Webhook.BaseURL), "/") + WebhookPath
}

// ListenAddr returns the host:port the ingress HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Webhook.Listen, c.Webhook.Port)
}
