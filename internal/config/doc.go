// Package config defines the application configuration structure and
// loading logic. Configuration is read from environment variables and
// optional YAML files, then validated before use.
package config
