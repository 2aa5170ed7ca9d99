package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/feed-widget/configs"
	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/filesystem"
	"github.com/lepinkainen/feed-widget/pkg/widget"
)

// DefaultPath is the config file looked up when none is given
const DefaultPath = "feed-widget.yaml"

var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds the central application configuration
type Config struct {
	Widget struct {
		APIBase string        `mapstructure:"api_base"` // Feed endpoint without query
		Variant string        `mapstructure:"variant"`  // minimal or cards
		Locale  string        `mapstructure:"locale"`   // ar or en
		Delay   time.Duration `mapstructure:"delay"`    // Pause before the request
		Timeout time.Duration `mapstructure:"timeout"`  // Request timeout
	} `mapstructure:"widget"`

	Source struct {
		Name          string `mapstructure:"name"`           // Registered feed source
		AccessToken   string `mapstructure:"access_token"`   // Bearer token for private blogs
		RetryAttempts int    `mapstructure:"retry_attempts"` // 1 disables retries
	} `mapstructure:"source"`

	Scheduler struct {
		StartInterval time.Duration `mapstructure:"start_interval"`
		Concurrency   int           `mapstructure:"concurrency"`
	} `mapstructure:"scheduler"`

	Images struct {
		Enabled bool          `mapstructure:"enabled"` // Look up og:image for posts without one
		DBPath  string        `mapstructure:"db_path"` // SQLite cache file
		TTL     time.Duration `mapstructure:"ttl"`
	} `mapstructure:"images"`

	Logging struct {
		Level      string `mapstructure:"level"`
		File       string `mapstructure:"file"` // Empty logs to stderr only
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"logging"`

	Server struct {
		Addr    string `mapstructure:"addr"`
		Metrics bool   `mapstructure:"metrics"`
	} `mapstructure:"server"`
}

// LoadConfig loads the embedded defaults and merges the file at path over them.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultPath
	}
	path = resolvePath(path)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// newViper returns a viper instance seeded with the embedded defaults.
// FEED_WIDGET_* environment variables override both, e.g.
// FEED_WIDGET_SOURCE_ACCESS_TOKEN.
func newViper() (*viper.Viper, error) {
	defaults, err := configs.EmbeddedConfigs.ReadFile(configs.DefaultConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	v.SetEnvPrefix("feed_widget")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	return v, nil
}

// resolvePath tries a relative path in the working directory first, then
// next to the executable
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if execPath, err := filesystem.GetDefaultPath(path); err == nil {
		if _, err := os.Stat(execPath); err == nil {
			return execPath
		}
	}
	return path
}

// SaveConfig writes config to path as YAML
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("widget.api_base", config.Widget.APIBase)
	v.Set("widget.variant", config.Widget.Variant)
	v.Set("widget.locale", config.Widget.Locale)
	v.Set("widget.delay", config.Widget.Delay.String())
	v.Set("widget.timeout", config.Widget.Timeout.String())

	v.Set("source.name", config.Source.Name)
	v.Set("source.access_token", config.Source.AccessToken)
	v.Set("source.retry_attempts", config.Source.RetryAttempts)

	v.Set("scheduler.start_interval", config.Scheduler.StartInterval.String())
	v.Set("scheduler.concurrency", config.Scheduler.Concurrency)

	v.Set("images.enabled", config.Images.Enabled)
	v.Set("images.db_path", config.Images.DBPath)
	v.Set("images.ttl", config.Images.TTL.String())

	v.Set("logging.level", config.Logging.Level)
	v.Set("logging.file", config.Logging.File)
	v.Set("logging.max_size_mb", config.Logging.MaxSizeMB)
	v.Set("logging.max_backups", config.Logging.MaxBackups)
	v.Set("logging.max_age_days", config.Logging.MaxAgeDays)

	v.Set("server.addr", config.Server.Addr)
	v.Set("server.metrics", config.Server.Metrics)

	return v.WriteConfigAs(path)
}

// WidgetOptions converts the widget section into widget.Options
func (c *Config) WidgetOptions() widget.Options {
	return widget.Options{
		APIBase: c.Widget.APIBase,
		Variant: widget.ParseVariant(c.Widget.Variant),
		Locale:  widget.ParseLocale(c.Widget.Locale),
		Delay:   c.Widget.Delay,
		Timeout: c.Widget.Timeout,
	}
}

// FeedClientOptions converts the source section into client options
func (c *Config) FeedClientOptions() api.FeedClientOptions {
	return api.FeedClientOptions{
		AccessToken:   c.Source.AccessToken,
		RetryAttempts: c.Source.RetryAttempts,
	}
}
