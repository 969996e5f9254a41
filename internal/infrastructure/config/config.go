package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Terminal   TerminalConfig
	Executor   ExecutorConfig
	Transcript TranscriptConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8030"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// TerminalConfig holds PTY and session configuration.
type TerminalConfig struct {
	Shell           string        `envconfig:"TERMINAL_SHELL" default:""`
	WorkingDir      string        `envconfig:"TERMINAL_WORKDIR" default:""`
	Rows            int           `envconfig:"TERMINAL_ROWS" default:"24"`
	Cols            int           `envconfig:"TERMINAL_COLS" default:"80"`
	EventQueueSize  int           `envconfig:"TERMINAL_EVENT_QUEUE" default:"256"`
	OutputQueueSize int           `envconfig:"TERMINAL_OUTPUT_QUEUE" default:"128"`
	MaxStdinBytes   int           `envconfig:"TERMINAL_MAX_STDIN" default:"8192"`
	FlushBytes      int           `envconfig:"TERMINAL_FLUSH_BYTES" default:"2048"`
	FlushInterval   time.Duration `envconfig:"TERMINAL_FLUSH_INTERVAL" default:"2s"`
	TermGrace       time.Duration `envconfig:"TERMINAL_TERM_GRACE" default:"2s"`
}

// ExecutorConfig holds command execution configuration.
type ExecutorConfig struct {
	DefaultTimeout  time.Duration `envconfig:"EXEC_TIMEOUT" default:"60s"`
	PollInitial     time.Duration `envconfig:"EXEC_POLL_INITIAL" default:"100ms"`
	PollMax         time.Duration `envconfig:"EXEC_POLL_MAX" default:"2s"`
	StabilityWindow time.Duration `envconfig:"EXEC_STABILITY_WINDOW" default:"2s"`
	MarkerAttempts  int           `envconfig:"EXEC_MARKER_ATTEMPTS" default:"8"`
	InterruptGrace  time.Duration `envconfig:"EXEC_INTERRUPT_GRACE" default:"2s"`
}

// TranscriptConfig holds transcript sink configuration.
type TranscriptConfig struct {
	Dir         string `envconfig:"TRANSCRIPT_DIR" default:"/tmp/autobot-transcripts"`
	RingSize    int    `envconfig:"TRANSCRIPT_RING" default:"200"`
	OutputTrunc int    `envconfig:"TRANSCRIPT_TRUNC" default:"2000"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
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
	return &Config{
		Server: ServerConfig{
			Port: "8030",
			Host: "0.0.0.0",
		},
		Terminal: TerminalConfig{
			Rows:            24,
			Cols:            80,
			EventQueueSize:  256,
			OutputQueueSize: 128,
			MaxStdinBytes:   8192,
			FlushBytes:      2048,
			FlushInterval:   2 * time.Second,
			TermGrace:       2 * time.Second,
		},
		Executor: ExecutorConfig{
			DefaultTimeout:  60 * time.Second,
			PollInitial:     100 * time.Millisecond,
			PollMax:         2 * time.Second,
			StabilityWindow: 2 * time.Second,
			MarkerAttempts:  8,
			InterruptGrace:  2 * time.Second,
		},
		Transcript: TranscriptConfig{
			Dir:         "/tmp/autobot-transcripts",
			RingSize:    200,
			OutputTrunc: 2000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
