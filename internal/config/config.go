// Package config loads flowctl settings from a YAML file, FLOWCTL_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FLOWCTL_WORKERS.
const EnvPrefix = "FLOWCTL"

// Executor kinds accepted by the executor setting.
const (
	ExecutorPool    = "pool"
	ExecutorGo      = "go"
	ExecutorBounded = "bounded"
)

// Config holds flowctl settings.
type Config struct {
	Workers    int           `mapstructure:"workers"`
	Executor   string        `mapstructure:"executor"`
	CycleCheck bool          `mapstructure:"cycle-check"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Output     string        `mapstructure:"output"`
	Metrics    bool          `mapstructure:"metrics"`
	Tracing    bool          `mapstructure:"tracing"`
	// OTLPEndpoint is the host:port of the OTLP/HTTP trace collector.
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
	LogLevel   string        `mapstructure:"log-level"`
	LogJSON    bool          `mapstructure:"log-json"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Workers:    50,
		Executor:   ExecutorPool,
		CycleCheck: true,
		Output:     "table",
		LogLevel:   "info",

		OTLPEndpoint: "localhost:4318",
	}
}

type loaderConfig struct {
	file    string
	envFile string
	flags   *pflag.FlagSet
}

// LoaderOption configures Load.
type LoaderOption func(*loaderConfig)

// WithConfigFile reads settings from path.  A missing file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.file = path }
}

// WithEnvFile loads KEY=value lines from path into the process environment
// before FLOWCTL_* variables are read.  Variables already set are kept.
func WithEnvFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithFlags binds fs so that flags the user set win over file and environment.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *loaderConfig) { lc.flags = fs }
}

// Load resolves the configuration.
func Load(opts ...LoaderOption) (Config, error) {
	var lc loaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault("workers", d.Workers)
	v.SetDefault("executor", d.Executor)
	v.SetDefault("cycle-check", d.CycleCheck)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("output", d.Output)
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("tracing", d.Tracing)
	v.SetDefault("otlp-endpoint", d.OTLPEndpoint)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-json", d.LogJSON)

	if lc.file != "" {
		v.SetConfigFile(lc.file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", lc.file, err)
		}
	}

	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil {
			return Config{}, fmt.Errorf("config: loading %s: %w", lc.envFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if lc.flags != nil {
		if err := v.BindPFlags(lc.flags); err != nil {
			return Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	switch c.Executor {
	case ExecutorPool, ExecutorGo, ExecutorBounded:
	default:
		errs = append(errs, fmt.Errorf("unknown executor %q", c.Executor))
	}
	switch c.Output {
	case "table", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown output %q", c.Output))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
