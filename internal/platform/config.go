// Package platform holds process-wide concerns that sit outside the
// protocol itself: environment-based configuration and resource
// sampling for /health.
package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every environment-tunable setting pusherd reads at
// startup.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// Network surface.
	Port           int    `env:"PORT" envDefault:"3000"`
	WSPath         string `env:"WS_PATH" envDefault:"/ws"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"*"`

	// Auth.
	AuthSecret string `env:"AUTH_SECRET" envDefault:"dev-secret-change-me"`

	// Admission control.
	ConnectionLimitPerIP     int `env:"CONNECTION_LIMIT_PER_IP" envDefault:"10"`
	ChannelLimitPerConnection int `env:"CHANNEL_LIMIT_PER_CONNECTION" envDefault:"50"`
	MessageRateLimit         int `env:"MESSAGE_RATE_LIMIT" envDefault:"100"`
	MessageRateWindowMS      int `env:"MESSAGE_RATE_WINDOW_MS" envDefault:"60000"`

	// Not part of the wire protocol: operational knobs carried alongside
	// the domain settings.
	ShutdownGracePeriod    time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	ActivityTimeoutSeconds int           `env:"ACTIVITY_TIMEOUT_SECONDS" envDefault:"120"`
	SendBufferSize         int           `env:"SEND_BUFFER_SIZE" envDefault:"256"`
	MetricsAddr            string        `env:"METRICS_ADDR" envDefault:":9090"`
	MetricsInterval        time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`
	LogLevel               string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat              string        `env:"LOG_FORMAT" envDefault:"json"`

	// Environment gates the AUTH_SECRET sentinel-default abort: a
	// production deployment that never set AUTH_SECRET is a
	// misconfiguration, not a usable default.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

const sentinelAuthSecret = "dev-secret-change-me"

// Addr returns the listen address derived from Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// OriginAllowList parses AllowedOrigins into a slice. A lone "*"
// (the default) means every origin is allowed, represented as a nil
// slice so callers can skip the check entirely.
func (c *Config) OriginAllowList() []string {
	if c.AllowedOrigins == "" || c.AllowedOrigins == "*" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MessageRateWindow returns the configured rate window as a Duration.
func (c *Config) MessageRateWindow() time.Duration {
	return time.Duration(c.MessageRateWindowMS) * time.Millisecond
}

// Load reads .env (if present) then environment variables into a
// Config, validating the result. Priority: real env vars > .env file >
// struct defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for startup-blocking errors.
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be > 0, got %d", c.Port)
	}
	if c.WSPath == "" {
		return fmt.Errorf("WS_PATH is required")
	}
	if c.ConnectionLimitPerIP < 0 {
		return fmt.Errorf("CONNECTION_LIMIT_PER_IP must be >= 0, got %d", c.ConnectionLimitPerIP)
	}
	if c.ChannelLimitPerConnection < 0 {
		return fmt.Errorf("CHANNEL_LIMIT_PER_CONNECTION must be >= 0, got %d", c.ChannelLimitPerConnection)
	}
	if c.MessageRateLimit < 0 {
		return fmt.Errorf("MESSAGE_RATE_LIMIT must be >= 0, got %d", c.MessageRateLimit)
	}
	if c.MessageRateWindowMS <= 0 {
		return fmt.Errorf("MESSAGE_RATE_WINDOW_MS must be > 0, got %d", c.MessageRateWindowMS)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got %q)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got %q)", c.LogFormat)
	}
	validEnvironments := map[string]bool{"development": true, "production": true}
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, production (got %q)", c.Environment)
	}

	if c.Environment == "production" && c.AuthSecret == sentinelAuthSecret {
		return fmt.Errorf("AUTH_SECRET must be set to a real secret in production")
	}

	return nil
}

// LogConfig emits the loaded configuration as a structured log line,
// never including AuthSecret.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Int("port", c.Port).
		Str("ws_path", c.WSPath).
		Str("allowed_origins", c.AllowedOrigins).
		Int("connection_limit_per_ip", c.ConnectionLimitPerIP).
		Int("channel_limit_per_connection", c.ChannelLimitPerConnection).
		Int("message_rate_limit", c.MessageRateLimit).
		Int("message_rate_window_ms", c.MessageRateWindowMS).
		Dur("shutdown_grace_period", c.ShutdownGracePeriod).
		Int("activity_timeout_seconds", c.ActivityTimeoutSeconds).
		Str("metrics_addr", c.MetricsAddr).
		Dur("metrics_interval", c.MetricsInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
