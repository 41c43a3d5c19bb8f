package config

import (
	"errors"
	"fmt"
	"os"

	"eventbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Booking       BookingConfig       `yaml:"booking"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Google        GoogleConfig        `yaml:"google"`
	Admins        []int64             `yaml:"admins"`
	Vendors       []models.Vendor     `yaml:"vendors"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BookingConfig tunes the lifecycle policies that are not part of the
// transition table itself.
type BookingConfig struct {
	OtpTTLMinutes         int    `yaml:"otp_ttl_minutes"`
	OtpMaxAttempts        int    `yaml:"otp_max_attempts"`
	ReviewWindowDays      int    `yaml:"review_window_days"`
	MaxAdvanceDays        int    `yaml:"max_advance_days"`
	ConfirmedCancelPolicy string `yaml:"confirmed_cancel_policy"`
	TransitionLimit       int    `yaml:"transition_limit"`
	TransitionWindow      int    `yaml:"transition_window"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; it only feeds os.ExpandEnv below.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Booking.ConfirmedCancelPolicy {
	case models.CancelPolicyDeny, models.CancelPolicyAdminOnly:
	default:
		return fmt.Errorf("unknown confirmed_cancel_policy: %s", c.Booking.ConfirmedCancelPolicy)
	}

	if c.Notifications.Telegram.Enabled && c.Notifications.Telegram.BotToken == "" {
		return errors.New("telegram notifications enabled but bot_token is empty")
	}

	return ValidateVendors(c.Vendors)
}

func ValidateVendors(vendors []models.Vendor) error {
	vendorIDs := make(map[int64]bool)
	for _, v := range vendors {
		if v.ID == 0 {
			return fmt.Errorf("vendor '%s' has invalid ID 0", v.Name)
		}
		if vendorIDs[v.ID] {
			return fmt.Errorf("duplicate vendor ID found: %d", v.ID)
		}
		vendorIDs[v.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Booking.OtpTTLMinutes == 0 {
		c.Booking.OtpTTLMinutes = models.DefaultOtpTTLMinutes
	}
	if c.Booking.OtpMaxAttempts == 0 {
		c.Booking.OtpMaxAttempts = models.DefaultOtpMaxAttempts
	}
	if c.Booking.ReviewWindowDays == 0 {
		c.Booking.ReviewWindowDays = models.DefaultReviewWindowDays
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	if c.Booking.ConfirmedCancelPolicy == "" {
		c.Booking.ConfirmedCancelPolicy = models.CancelPolicyDeny
	}
	if c.Booking.TransitionLimit == 0 {
		c.Booking.TransitionLimit = models.DefaultTransitionLimit
	}
	if c.Booking.TransitionWindow == 0 {
		c.Booking.TransitionWindow = models.DefaultTransitionWindow
	}
}
