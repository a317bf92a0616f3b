package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Email    EmailConfig    `mapstructure:"email"`
	Google   GoogleConfig   `mapstructure:"google"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	Reseller ResellerConfig `mapstructure:"reseller"`
}

// AppConfig holds base application settings.
type AppConfig struct {
	Env        string        `mapstructure:"env"`         // local / prod
	LogLevel   string        `mapstructure:"log_level"`   // debug / info / warn / error
	HTTPAddr   string        `mapstructure:"http_addr"`   // listen address
	SiteURL    string        `mapstructure:"site_url"`    // public URL used in emails
	SessionTTL time.Duration `mapstructure:"session_ttl"` // server side session lifetime
}

// DatabaseConfig holds the SQL database settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis settings used for OTP codes and sessions.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// EmailConfig holds SMTP settings for the mail dispatcher.
type EmailConfig struct {
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	SMTPUser  string `mapstructure:"smtp_user"`
	SMTPPass  string `mapstructure:"smtp_pass"`
	FromEmail string `mapstructure:"from_email"`
}

// GoogleConfig holds the OAuth client settings.
type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

// CaptchaConfig holds the human verification challenge settings.
// An empty secret disables the check.
type CaptchaConfig struct {
	Secret    string   `mapstructure:"secret"`
	Hostnames []string `mapstructure:"hostnames"`
}

// ResellerConfig holds the fulfillment API settings.
type ResellerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// Load reads configuration from config.json (if present) and the
// LOADXPRESS_* environment, with env taking precedence.
func Load(configPath ...string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":3000")
	v.SetDefault("app.site_url", "http://localhost:3000")
	v.SetDefault("app.session_ttl", time.Hour)
	v.SetDefault("database.dsn", "file:loadxpress.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("reseller.base_url", "https://www.cheapdatahub.ng")

	if len(configPath) > 0 && configPath[0] != "" {
		v.SetConfigFile(configPath[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LOADXPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// no config file: defaults plus env is a valid setup
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.App.SessionTTL <= 0 {
		cfg.App.SessionTTL = time.Hour
	}

	return cfg, nil
}

// IsProd reports whether the app runs in production.
func (c *Config) IsProd() bool {
	return c.App.Env == "prod"
}
