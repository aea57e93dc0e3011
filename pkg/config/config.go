// Package config loads and validates the stratum configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (STRATUM_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the stratum configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics settings
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Lock contains lock manager configuration
	Lock LockConfig `mapstructure:"lock" yaml:"lock"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format (text or json)
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether lock metrics are registered
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics listen port for embedding processes
	Port int `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`
}

// LockConfig contains lock manager configuration.
type LockConfig struct {
	// DefaultTimeout bounds the systemwide read/write try-lock helpers when
	// the caller does not supply a timeout.
	// Default: 5s
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gt=0" yaml:"default_timeout"`

	// CollectionLocking controls whether the storage layer supports
	// collection-level locking. When false, database-level intent modes are
	// upgraded (IS to S, IX to X).
	// Default: true
	CollectionLocking bool `mapstructure:"collection_locking" yaml:"collection_locking"`

	// DocumentLocking controls whether the storage layer supports
	// document-level locking. When false, collection-level intent modes are
	// upgraded (IS to S, IX to X).
	// Default: true
	DocumentLocking bool `mapstructure:"document_locking" yaml:"document_locking"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9224,
		},
		Lock: LockConfig{
			DefaultTimeout:    5 * time.Second,
			CollectionLocking: true,
			DocumentLocking:   true,
		},
	}
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath loads defaults plus environment overrides; a missing
// explicit file is an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against the struct validation tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// WriteSample writes the default configuration to path in YAML.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables, defaults, and the config
// file location. Environment variables use the STRATUM_ prefix with
// underscores, e.g. STRATUM_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STRATUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.port", defaults.Metrics.Port)
	v.SetDefault("lock.default_timeout", defaults.Lock.DefaultTimeout)
	v.SetDefault("lock.collection_locking", defaults.Lock.CollectionLocking)
	v.SetDefault("lock.document_locking", defaults.Lock.DocumentLocking)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
}

// durationDecodeHook converts config strings like "30s" or "5m" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
