package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete skiff configuration.
//
// It captures all configurable aspects of the content server:
//   - Logging behavior
//   - Listener settings (address, timeouts, accept-rate limiting)
//   - Source store selection and store-specific configuration
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SKIFF_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store configuration pattern: the Source.Type field selects the backend and
// only the matching type-specific section is consulted. Each backend decodes
// its own options map in the factory, so backends can evolve their settings
// without touching this struct.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains listener settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Source specifies the content source type and type-specific configuration
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Metrics controls Prometheus metrics exposure
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	// Listen is the address the content listener binds, e.g. ":8080"
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required"`

	// ReadTimeout bounds request parsing per connection
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// ConnsPerSecond limits the accept rate; 0 disables limiting
	ConnsPerSecond uint `mapstructure:"conns_per_second" yaml:"conns_per_second"`

	// Burst is the accept-rate burst allowance, used only when
	// ConnsPerSecond is non-zero
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// SourceConfig specifies the content source configuration.
//
// The Type field determines which store implementation is used. Only the
// corresponding type-specific section is used.
type SourceConfig struct {
	// Type specifies which source store implementation to use
	// Valid values: filesystem, memory, badger, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory badger s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns metrics collection and the metrics listener on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics listener port
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SKIFF_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location under the user config
// directory; a missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable and config file handling.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SKIFF_ prefix with underscores,
	// e.g. SKIFF_LOGGING_LEVEL=DEBUG or SKIFF_SERVER_LISTEN=:9000.
	v.SetEnvPrefix("SKIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file means defaults plus environment.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skiff")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "skiff")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
