// Package config loads the service configuration from a file and the
// environment. Engine tunables are translated into the domain config; the
// storage section selects the durable backend.
package config

import (
	"strings"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
	"github.com/spf13/viper"
)

// Config holds the configuration for the workflow service.
type Config struct {
	Storage struct {
		Backend     string `mapstructure:"backend"`
		BadgerDir   string `mapstructure:"badger_dir"`
		PostgresDSN string `mapstructure:"postgres_dsn"`
	} `mapstructure:"storage"`
	Engine struct {
		MaxConcurrentInstances int           `mapstructure:"max_concurrent_instances"`
		RetryAttempts          int           `mapstructure:"retry_attempts"`
		RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay"`
		RetryMaxDelay          time.Duration `mapstructure:"retry_max_delay"`
		NodeTimeout            time.Duration `mapstructure:"node_timeout"`
	} `mapstructure:"engine"`
}

const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Load reads configuration from an optional config file plus TRIAGEFLOW_*
// environment variables. A missing file is not an error; the defaults and
// environment carry a working setup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("triageflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("TRIAGEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so environment overrides bind on Unmarshal.
	v.SetDefault("storage.backend", BackendBadger)
	v.SetDefault("storage.badger_dir", "./data")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("engine.max_concurrent_instances", 0)
	v.SetDefault("engine.retry_attempts", 0)
	v.SetDefault("engine.retry_base_delay", time.Duration(0))
	v.SetDefault("engine.retry_max_delay", time.Duration(0))
	v.SetDefault("engine.node_timeout", time.Duration(0))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// EngineConfig converts the loaded tunables into the domain config.
func (c *Config) EngineConfig() domain.Config {
	cfg := domain.Config{
		MaxConcurrentInstances: c.Engine.MaxConcurrentInstances,
		RetryAttempts:          c.Engine.RetryAttempts,
		RetryBaseDelay:         c.Engine.RetryBaseDelay,
		RetryMaxDelay:          c.Engine.RetryMaxDelay,
		NodeTimeout:            c.Engine.NodeTimeout,
	}
	cfg.ApplyDefaults()
	return cfg
}

func validate(c *Config) error {
	switch c.Storage.Backend {
	case BackendBadger:
		return nil
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			return &domain.ConfigError{Field: "storage.postgres_dsn", Message: "required for the postgres backend"}
		}
		return nil
	default:
		return &domain.ConfigError{Field: "storage.backend", Message: "must be badger or postgres"}
	}
}
