package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and optionally a
// config file. Environment variables take precedence over values from
// config files and use the LUKISAN_ prefix with underscores for nesting
// (e.g. LUKISAN_SERVER_PORT, LUKISAN_PROVIDER_API_KEY).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lukisan")

	v.SetEnvPrefix("LUKISAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"database.url",
		"provider.base_url",
		"provider.api_key",
		"provider.model",
		"storage.endpoint",
		"storage.access_key",
		"storage.secret_key",
		"storage.bucket",
		"storage.public_base_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	// A missing config file is fine; env vars alone can carry the config.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for settings that have sensible
// defaults. Credentials and URLs have no defaults on purpose.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("provider.request_timeout", 30*time.Second)

	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("workflow.poll_interval", 10*time.Second)
	v.SetDefault("workflow.max_retries", 2)
	v.SetDefault("workflow.retry_delay", 5*time.Second)
	v.SetDefault("workflow.max_poll_failures", 3)
	v.SetDefault("workflow.wall_clock_budget", 30*time.Minute)
}
