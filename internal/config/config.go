// Package config loads vidresearch settings from defaults, an optional YAML
// file, a .env file and VIDRESEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// VIDRESEARCH_CLIENT_URL or VIDRESEARCH_SERVER_ADDR.
const EnvPrefix = "VIDRESEARCH"

// Config is the full configuration tree.
type Config struct {
	Client  ClientConfig  `mapstructure:"client"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ClientConfig configures `vidresearch start`.
type ClientConfig struct {
	// URL is the page URL the WebSocket endpoint is derived from.
	URL         string        `mapstructure:"url"`
	Plain       bool          `mapstructure:"plain"`
	SaveReport  string        `mapstructure:"save_report"`
	WatchDir    string        `mapstructure:"watch_dir"`
	MaxUploadMB int64         `mapstructure:"max_upload_mb"`
	Settle      time.Duration `mapstructure:"settle"`
	// MetricsAddr serves the client's counters when set.
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// ServerConfig configures `vidresearch serve`.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	UploadDir string        `mapstructure:"upload_dir"`
	StaticDir string        `mapstructure:"static_dir"`
	Analyzer  []string      `mapstructure:"analyzer"`
	Responder []string      `mapstructure:"responder"`
	StepDelay time.Duration `mapstructure:"step_delay"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File receives the log when the terminal UI owns the screen.
	File string `mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			URL:         "http://localhost:8000/",
			MaxUploadMB: 512,
			Settle:      500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:      ":8000",
			UploadDir: "uploads",
			StepDelay: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "vidresearch.log",
		},
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("client.url", defaults.Client.URL)
	v.SetDefault("client.plain", defaults.Client.Plain)
	v.SetDefault("client.save_report", defaults.Client.SaveReport)
	v.SetDefault("client.watch_dir", defaults.Client.WatchDir)
	v.SetDefault("client.max_upload_mb", defaults.Client.MaxUploadMB)
	v.SetDefault("client.settle", defaults.Client.Settle)
	v.SetDefault("client.metrics_addr", defaults.Client.MetricsAddr)

	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.upload_dir", defaults.Server.UploadDir)
	v.SetDefault("server.static_dir", defaults.Server.StaticDir)
	v.SetDefault("server.analyzer", defaults.Server.Analyzer)
	v.SetDefault("server.responder", defaults.Server.Responder)
	v.SetDefault("server.step_delay", defaults.Server.StepDelay)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
}

// New returns a viper instance with defaults and environment binding set up.
// envFile is loaded into the process environment first when it exists;
// configFile is read when non-empty.
func New(envFile, configFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Client.URL == "" {
		errs = append(errs, errors.New("client.url is required"))
	}
	if c.Client.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("client.max_upload_mb must be positive, got %d", c.Client.MaxUploadMB))
	}
	if c.Client.Settle < 0 {
		errs = append(errs, fmt.Errorf("client.settle must not be negative, got %s", c.Client.Settle))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.UploadDir == "" {
		errs = append(errs, errors.New("server.upload_dir is required"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *ClientConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
