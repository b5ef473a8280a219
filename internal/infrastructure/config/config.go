package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// EnvPrefix prefixes every environment variable, e.g. PTYD_SERVER_PORT.
// The bare tag names (PORT, LOG_LEVEL, ...) are honoured as fallbacks.
const EnvPrefix = "ptyd"

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "PTYD_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   logging.Config  `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Terminal  TerminalConfig  `yaml:"terminal"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" yaml:"port"`
	Host            string        `envconfig:"HOST" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout"`
	AllowOrigins    []string      `envconfig:"ALLOW_ORIGINS" yaml:"allow_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// TerminalConfig holds PTY and delivery configuration.
type TerminalConfig struct {
	DefaultShell    string        `envconfig:"DEFAULT_SHELL" yaml:"default_shell"`
	TermType        string        `envconfig:"TERM_TYPE" yaml:"term_type"`
	Rows            uint16        `envconfig:"ROWS" yaml:"rows"`
	Cols            uint16        `envconfig:"COLS" yaml:"cols"`
	ReadBufferSize  int           `envconfig:"READ_BUFFER_SIZE" yaml:"read_buffer_size"`
	ReplayBytes     int           `envconfig:"REPLAY_BYTES" yaml:"replay_bytes"`
	SubscriberQueue int           `envconfig:"SUBSCRIBER_QUEUE" yaml:"subscriber_queue"`
	KillGrace       time.Duration `envconfig:"KILL_GRACE" yaml:"kill_grace"`
}

// Load builds configuration from defaults, then the YAML file named by
// PTYD_CONFIG (if any), then environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// No default tags: envconfig only touches fields whose variable is set,
	// so file values survive.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	opts := terminal.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			ShutdownTimeout: 10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Logging: logging.Config{
			Level:  "info",
			Output: "stderr",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			DefaultShell:    opts.DefaultShell,
			TermType:        opts.Term,
			Rows:            opts.Size.Rows,
			Cols:            opts.Size.Cols,
			ReadBufferSize:  opts.ReadBufferSize,
			ReplayBytes:     256 * 1024,
			SubscriberQueue: 256,
			KillGrace:       opts.KillGrace,
		},
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("invalid config: server port is empty")
	}
	if c.Terminal.Rows == 0 || c.Terminal.Cols == 0 {
		return fmt.Errorf("invalid config: terminal size %dx%d", c.Terminal.Rows, c.Terminal.Cols)
	}
	if c.Terminal.ReadBufferSize <= 0 {
		return fmt.Errorf("invalid config: read buffer size %d", c.Terminal.ReadBufferSize)
	}
	if c.Terminal.SubscriberQueue <= 0 {
		return fmt.Errorf("invalid config: subscriber queue %d", c.Terminal.SubscriberQueue)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid config: rate limit %d rps", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// TerminalOptions converts the terminal section for the session registry.
func (c *Config) TerminalOptions() terminal.Options {
	return terminal.Options{
		DefaultShell:   c.Terminal.DefaultShell,
		Term:           c.Terminal.TermType,
		Size:           terminal.Winsize{Rows: c.Terminal.Rows, Cols: c.Terminal.Cols},
		ReadBufferSize: c.Terminal.ReadBufferSize,
		KillGrace:      c.Terminal.KillGrace,
	}
}
