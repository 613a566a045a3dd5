package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service.
type Config struct {
	TelegramToken string `mapstructure:"telegram_token"`
	DatabaseURL   string `mapstructure:"database_url" validate:"required"`
	HTTPAddr      string `mapstructure:"http_addr" validate:"required"`
	UploadDir     string `mapstructure:"upload_dir" validate:"required"`
	ProjectURL    string `mapstructure:"project_url" validate:"omitempty,url"`
	DigestTime    string `mapstructure:"digest_time" validate:"required,datetime=15:04"`
	Timezone      string `mapstructure:"timezone" validate:"required,timezone"`
	LogLevel      string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat     string `mapstructure:"log_format" validate:"required,oneof=text json"`
	BcryptCost    int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

var defaults = map[string]any{
	"telegram_token": "",
	"database_url":   "team_tasks.db",
	"http_addr":      ":3000",
	"upload_dir":     "uploads",
	"project_url":    "",
	"digest_time":    "09:00",
	"timezone":       "Asia/Tashkent",
	"log_level":      "info",
	"log_format":     "text",
	"bcrypt_cost":    8,
}

// Load reads configuration from environment variables with sane defaults.
// Keys are the upper-cased field names, e.g. TELEGRAM_TOKEN or DIGEST_TIME.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", strings.ToUpper(key), err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Location resolves Timezone. Load has already validated it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TelegramEnabled reports whether a bot token was configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
