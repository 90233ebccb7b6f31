package domain

import (
	"fmt"
	"time"
)

// Config tunes the engine. Zero values are filled by ApplyDefaults.
type Config struct {
	MaxConcurrentInstances int
	RetryAttempts          int
	RetryBaseDelay         time.Duration
	RetryMaxDelay          time.Duration
	NodeTimeout            time.Duration
}

const (
	defaultMaxConcurrentInstances = 64
	defaultRetryAttempts          = 3
	defaultRetryBaseDelay         = 250 * time.Millisecond
	defaultRetryMaxDelay          = 10 * time.Second
	defaultNodeTimeout            = 30 * time.Second
)

func (c *Config) ApplyDefaults() {
	if c.MaxConcurrentInstances <= 0 {
		c.MaxConcurrentInstances = defaultMaxConcurrentInstances
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = defaultNodeTimeout
	}
}

func (c *Config) Validate() error {
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return NewValidationError("retry max delay below base delay", map[string]interface{}{
			"base": c.RetryBaseDelay.String(),
			"max":  c.RetryMaxDelay.String(),
		})
	}
	return nil
}

type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}
