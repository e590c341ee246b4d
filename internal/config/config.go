package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Provider  ProviderConfig  `mapstructure:"provider"  validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// ProviderConfig contains the remote generation service settings.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"api_key"  validate:"required"`
	Model   string `mapstructure:"model"    validate:"required"`

	// RequestTimeout bounds each individual call to the provider.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
}

// StorageConfig contains the permanent object storage settings.
type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"        validate:"required"`
	AccessKey     string `mapstructure:"access_key"      validate:"required"`
	SecretKey     string `mapstructure:"secret_key"      validate:"required"`
	Bucket        string `mapstructure:"bucket"          validate:"required"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
}

// WorkflowConfig tunes the task lifecycle orchestrator.
type WorkflowConfig struct {
	// PollInterval is the fixed wait between remote status checks.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`

	// MaxRetries caps automatic resubmissions after transient failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryDelay is the fixed backoff between automatic retries.
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"required"`

	// MaxPollFailures is how many consecutive status-fetch failures the
	// poller tolerates before failing the task.
	MaxPollFailures int `mapstructure:"max_poll_failures" validate:"required,gt=0"`

	// WallClockBudget caps the total duration of one workflow, from
	// submission to archived artifact.
	WallClockBudget time.Duration `mapstructure:"wall_clock_budget" validate:"required"`
}
