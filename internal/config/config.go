// Package config defines the quiz configuration and how it is loaded.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DogAPIBaseURL is the breed API host.
	DogAPIBaseURL string `koanf:"dog_api_base_url"`

	// RequestTimeoutMS bounds a single upstream request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// RoundTimeoutMS bounds loading a whole round. Zero disables it.
	RoundTimeoutMS int `koanf:"round_timeout_ms"`

	// MaxSessions caps live sessions. Zero means unbounded.
	MaxSessions int `koanf:"max_sessions"`

	// SessionIdleTTLS and SweepIntervalS control idle-session eviction.
	SessionIdleTTLS int `koanf:"session_idle_ttl_s"`
	SweepIntervalS  int `koanf:"sweep_interval_s"`

	// FeedbackDelayMS is how long the terminal client shows a verdict.
	FeedbackDelayMS int `koanf:"feedback_delay_ms"`

	// RandomSeed fixes option picking. Zero seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// StallOnEmptyCatalog leaves rounds loading when no breeds exist
	// instead of reporting an error.
	StallOnEmptyCatalog bool `koanf:"stall_on_empty_catalog"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		DogAPIBaseURL:    "https://dog.ceo",
		RequestTimeoutMS: 10_000,
		RoundTimeoutMS:   15_000,
		MaxSessions:      1000,
		SessionIdleTTLS:  1800,
		SweepIntervalS:   60,
		FeedbackDelayMS:  2000,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.DogAPIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: dog_api_base_url %q", ErrInvalidConfig, c.DogAPIBaseURL)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive", ErrInvalidConfig)
	}
	for name, v := range map[string]int{
		"round_timeout_ms":  c.RoundTimeoutMS,
		"max_sessions":      c.MaxSessions,
		"feedback_delay_ms": c.FeedbackDelayMS,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if c.SessionIdleTTLS <= 0 || c.SweepIntervalS <= 0 {
		return fmt.Errorf("%w: session_idle_ttl_s and sweep_interval_s must be positive", ErrInvalidConfig)
	}
	return nil
}

// RequestTimeout bounds a single dog API request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RoundTimeout bounds a whole round; zero means no limit.
func (c *Config) RoundTimeout() time.Duration {
	return time.Duration(c.RoundTimeoutMS) * time.Millisecond
}

// SessionIdleTTL is how long an untouched session survives.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLS) * time.Second
}

// SweepInterval is how often idle sessions are evicted.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}

// FeedbackDelay is how long the terminal client shows a result before advancing.
func (c *Config) FeedbackDelay() time.Duration {
	return time.Duration(c.FeedbackDelayMS) * time.Millisecond
}
